package handler

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gurkirtheerey/colormyhouse/config"
	"github.com/gurkirtheerey/colormyhouse/model"
	"github.com/gurkirtheerey/colormyhouse/service"
	"github.com/gurkirtheerey/colormyhouse/utils"
	"go.uber.org/zap"
)

// 会话协调器的闲置回收参数
const (
	sessionTTL  = 10 * time.Minute
	maxSessions = 1024
)

// sessionEntry 记录协调器及其最近一次使用时间，供闲置回收
type sessionEntry struct {
	coord    *service.PreviewCoordinator
	lastSeen time.Time
}

// RecolorHandler 负责预览与最终换色两条路径。
// 预览按会话去抖并丢弃过期结果；最终换色同一会话同时只允许一次。
type RecolorHandler struct {
	cfg         *config.Config
	redis       *service.RedisService
	processor   *service.ColorProcessor
	maskBuilder *service.MaskBuilder

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

func NewRecolorHandler(cfg *config.Config, redis *service.RedisService, processor *service.ColorProcessor, maskBuilder *service.MaskBuilder) *RecolorHandler {
	return &RecolorHandler{
		cfg:         cfg,
		redis:       redis,
		processor:   processor,
		maskBuilder: maskBuilder,
		sessions:    make(map[string]*sessionEntry),
	}
}

// recolorInput 一次换色请求解析后的全部输入
type recolorInput struct {
	pixels *model.PixelBuffer
	mask   *model.CombinedMask
	opts   model.ColorChangeOptions
}

// Preview 低分辨率实时预览
func (h *RecolorHandler) Preview(c *gin.Context) {
	in, ok := h.parseRequest(c)
	if !ok {
		return
	}

	sessionID := c.DefaultPostForm("session_id", c.ClientIP())
	coord := h.session(sessionID)

	result, seq, err := coord.Do(c.Request.Context(), service.PreviewJob{
		Pixels:  in.pixels,
		Mask:    in.mask,
		Options: in.opts,
		Scale:   h.cfg.Recolor.PreviewScale,
	})
	if err != nil {
		if errors.Is(err, service.ErrSuperseded) {
			c.JSON(http.StatusConflict, model.ErrorResponse{
				Success: false,
				Message: "预览请求已被更新的请求取代",
			})
			return
		}
		utils.Logger.Error("failed to create preview", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "预览生成失败",
			Error:   err.Error(),
		})
		return
	}

	h.respondResult(c, result, seq, "预览生成成功")
}

// Apply 全分辨率最终换色
func (h *RecolorHandler) Apply(c *gin.Context) {
	in, ok := h.parseRequest(c)
	if !ok {
		return
	}

	sessionID := c.DefaultPostForm("session_id", c.ClientIP())
	coord := h.session(sessionID)

	if err := coord.BeginFinal(); err != nil {
		c.JSON(http.StatusConflict, model.ErrorResponse{
			Success: false,
			Message: "已有一次换色在执行，请稍候",
		})
		return
	}
	defer coord.EndFinal()

	result, err := h.processor.ApplyColorChange(in.pixels, in.mask, in.opts)
	if err != nil {
		utils.Logger.Error("failed to apply color change", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "换色失败",
			Error:   err.Error(),
		})
		return
	}

	utils.Logger.Info("color change applied",
		zap.String("session", sessionID),
		zap.String("target", in.opts.TargetColor),
		zap.Duration("duration", result.Duration))

	h.respondResult(c, result, 0, "换色成功")
}

// parseRequest 解析multipart表单：图片、选区、参数。
// 失败时直接写入错误响应并返回 ok=false。
func (h *RecolorHandler) parseRequest(c *gin.Context) (recolorInput, bool) {
	var in recolorInput

	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "请上传图片文件",
			Error:   err.Error(),
		})
		return in, false
	}
	if file.Size > h.cfg.Upload.MaxSize {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: fmt.Sprintf("文件大小超过限制 (%d MB)", h.cfg.Upload.MaxSize/(1024*1024)),
		})
		return in, false
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false, Message: "读取图片失败", Error: err.Error(),
		})
		return in, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false, Message: "读取图片失败", Error: err.Error(),
		})
		return in, false
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false, Message: "图片解码失败", Error: err.Error(),
		})
		return in, false
	}

	pixels, err := model.FromImage(img)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false, Message: "图片尺寸无效", Error: err.Error(),
		})
		return in, false
	}

	var selection model.Selection
	if raw := c.PostForm("selection"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &selection); err != nil {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{
				Success: false, Message: "选区参数格式错误", Error: err.Error(),
			})
			return in, false
		}
	}
	if len(selection.ClassIDs) == 0 && len(selection.Polygons) == 0 {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false, Message: "请至少选择一个区域",
		})
		return in, false
	}

	var opts model.ColorChangeOptions
	if raw := c.PostForm("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{
				Success: false, Message: "换色参数格式错误", Error: err.Error(),
			})
			return in, false
		}
	}
	// 边界处对颜色串做严格校验；核心对非法值按策略回退为黑色
	if !isHexColor(opts.TargetColor) {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false, Message: "目标颜色必须是 #RRGGBB 格式",
		})
		return in, false
	}

	mask, ok := h.buildMask(c, pixels, utils.BytesMD5(data), selection)
	if !ok {
		return in, false
	}

	in.pixels = pixels
	in.mask = mask
	in.opts = opts
	return in, true
}

// buildMask 把分类选区（来自缓存的分割结果）与手动多边形叠加为组合掩码
func (h *RecolorHandler) buildMask(c *gin.Context, pixels *model.PixelBuffer, md5 string, selection model.Selection) (*model.CombinedMask, bool) {
	var masks []*model.ClassMask
	ids := make([]int, 0, len(selection.ClassIDs)+len(selection.Polygons))

	if len(selection.ClassIDs) > 0 {
		seg, err := h.redis.GetSegmentation(c.Request.Context(), md5)
		if err != nil {
			utils.Logger.Warn("failed to get cached segmentation", zap.Error(err))
		}
		if seg == nil {
			c.JSON(http.StatusNotFound, model.ErrorResponse{
				Success: false,
				Message: "未找到该图片的分割结果，请先上传图片完成分割",
			})
			return nil, false
		}
		for _, dc := range seg.Classes {
			if !containsInt(selection.ClassIDs, dc.ID) {
				continue
			}
			mask, err := h.maskBuilder.DecodeMask(dc.Mask, dc.ID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, model.ErrorResponse{
					Success: false, Message: "掩码解码失败", Error: err.Error(),
				})
				return nil, false
			}
			masks = append(masks, mask)
			ids = append(ids, dc.ID)
		}
	}

	for _, poly := range selection.Polygons {
		if _, ok := model.ClassByID(poly.ClassID); !ok {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{
				Success: false,
				Message: fmt.Sprintf("无效的分类ID: %d", poly.ClassID),
			})
			return nil, false
		}
		mask := h.maskBuilder.PolygonToMask(poly.Points, pixels.Width, pixels.Height, poly.ClassID)
		masks = append(masks, mask)
		ids = append(ids, poly.ClassID)
	}

	combined, err := h.maskBuilder.Combine(masks, ids, pixels.Width, pixels.Height)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false, Message: "选区与图片尺寸不匹配", Error: err.Error(),
		})
		return nil, false
	}
	return combined, true
}

// session 取出或创建会话对应的预览协调器。
// 每次访问顺带回收闲置超过TTL的会话；超出上限时淘汰最久未使用的一个。
func (h *RecolorHandler) session(id string) *service.PreviewCoordinator {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	for key, entry := range h.sessions {
		if key != id && now.Sub(entry.lastSeen) > sessionTTL {
			delete(h.sessions, key)
		}
	}

	if entry, ok := h.sessions[id]; ok {
		entry.lastSeen = now
		return entry.coord
	}

	if len(h.sessions) >= maxSessions {
		h.evictOldestLocked()
	}

	debounce := time.Duration(h.cfg.Recolor.DebounceMS) * time.Millisecond
	entry := &sessionEntry{
		coord:    service.NewPreviewCoordinator(h.processor, debounce),
		lastSeen: now,
	}
	h.sessions[id] = entry
	return entry.coord
}

// evictOldestLocked 淘汰最久未使用的会话，调用方需持有h.mu
func (h *RecolorHandler) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	first := true
	for key, entry := range h.sessions {
		if first || entry.lastSeen.Before(oldest) {
			oldestKey = key
			oldest = entry.lastSeen
			first = false
		}
	}
	if !first {
		delete(h.sessions, oldestKey)
	}
}

func (h *RecolorHandler) respondResult(c *gin.Context, result *model.ProcessingResult, seq uint64, message string) {
	encoded, err := encodePNG(result.Pixels)
	if err != nil {
		utils.Logger.Error("failed to encode result image", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false, Message: "结果编码失败", Error: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, model.RecolorResponse{
		Success:    true,
		Message:    message,
		Image:      encoded,
		Width:      result.Pixels.Width,
		Height:     result.Pixels.Height,
		Seq:        seq,
		DurationMS: result.Duration.Milliseconds(),
	})
}

// encodePNG 把像素缓冲区编码为Base64 PNG
func encodePNG(pixels *model.PixelBuffer) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, pixels.ToRGBA()); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// isHexColor 校验 #RRGGBB
func isHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, ch := range s[1:] {
		switch {
		case ch >= '0' && ch <= '9':
		case ch >= 'a' && ch <= 'f':
		case ch >= 'A' && ch <= 'F':
		default:
			return false
		}
	}
	return true
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
