package handler

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"github.com/gin-gonic/gin"
	"github.com/gurkirtheerey/colormyhouse/config"
	"github.com/gurkirtheerey/colormyhouse/model"
	"github.com/gurkirtheerey/colormyhouse/service"
	"github.com/gurkirtheerey/colormyhouse/utils"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

type UploadHandler struct {
	cfg         *config.Config
	redis       *service.RedisService
	classifier  *service.ClassifierService
	maskBuilder *service.MaskBuilder
}

func NewUploadHandler(cfg *config.Config, redis *service.RedisService, classifier *service.ClassifierService, maskBuilder *service.MaskBuilder) *UploadHandler {
	return &UploadHandler{
		cfg:         cfg,
		redis:       redis,
		classifier:  classifier,
		maskBuilder: maskBuilder,
	}
}

// Upload 处理图片上传并执行语义分割
func (h *UploadHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		utils.Logger.Error("failed to get uploaded file", zap.Error(err))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "请上传图片文件",
			Error:   err.Error(),
		})
		return
	}

	// 验证文件大小
	if file.Size > h.cfg.Upload.MaxSize {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: fmt.Sprintf("文件大小超过限制 (%d MB)", h.cfg.Upload.MaxSize/(1024*1024)),
		})
		return
	}

	// 验证文件类型
	contentType := file.Header.Get("Content-Type")
	if !h.isAllowedType(contentType) {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "不支持的文件类型，仅支持 JPEG/PNG",
		})
		return
	}

	// 生成文件名
	ext := filepath.Ext(file.Filename)
	filename := fmt.Sprintf("%d%s", utils.GenerateID(), ext)
	savePath := filepath.Join(h.cfg.Upload.UploadDir, filename)

	// 保存文件
	if err := c.SaveUploadedFile(file, savePath); err != nil {
		utils.Logger.Error("failed to save file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "保存文件失败",
			Error:   err.Error(),
		})
		return
	}

	// 计算MD5
	md5, err := utils.FileMD5(savePath)
	if err != nil {
		utils.Logger.Error("failed to calculate md5", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "计算文件哈希失败",
			Error:   err.Error(),
		})
		return
	}

	// 确保文件在处理完成后被删除（如果配置启用）
	if h.cfg.Upload.CleanupTempFiles {
		defer func() {
			if err := os.Remove(savePath); err != nil {
				utils.Logger.Warn("failed to delete temp file",
					zap.String("file", savePath),
					zap.Error(err))
			}
		}()
	}

	utils.Logger.Info("file uploaded",
		zap.String("filename", filename),
		zap.String("md5", md5),
		zap.Int64("size", file.Size))

	// 检查缓存
	ctx := context.Background()
	cached, err := h.redis.GetSegmentation(ctx, md5)
	if err != nil {
		utils.Logger.Warn("failed to get cache", zap.Error(err))
	}
	if cached != nil {
		utils.Logger.Info("cache hit", zap.String("md5", md5))
		c.JSON(http.StatusOK, model.UploadResponse{
			Success: true,
			Message: "处理成功（来自缓存）",
			Data:    cached,
		})
		return
	}

	// 解码并分类
	result, err := h.classifyFile(c.Request.Context(), savePath, md5)
	if err != nil {
		utils.Logger.Error("failed to classify image", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "图片处理失败",
			Error:   err.Error(),
		})
		return
	}

	// 保存到缓存
	if err := h.redis.SetSegmentation(ctx, md5, result); err != nil {
		utils.Logger.Warn("failed to set cache", zap.Error(err))
	}

	c.JSON(http.StatusOK, model.UploadResponse{
		Success: true,
		Message: "处理成功",
		Data:    result,
	})
}

// classifyFile 解码、缩放、分类并把掩码还原到原图尺寸
func (h *UploadHandler) classifyFile(ctx context.Context, path, md5 string) (*model.SegmentationResult, error) {
	img, err := decodeImage(path)
	if err != nil {
		return nil, err
	}

	width := img.Bounds().Dx()
	height := img.Bounds().Dy()

	// 智能缩放：过大的图先缩到工作分辨率再分类
	working := smartResize(img, h.cfg.Classifier.MaxDimension)

	buf, err := model.FromImage(working)
	if err != nil {
		return nil, err
	}

	seg, err := h.classifier.Classify(ctx, buf)
	if err != nil {
		return nil, err
	}

	result := &model.SegmentationResult{
		MD5:       md5,
		Width:     width,
		Height:    height,
		Timestamp: time.Now().Unix(),
	}

	for i, mask := range seg.Masks {
		// 还原到原始尺寸
		if mask.Width != width || mask.Height != height {
			mask = h.maskBuilder.ResampleMask(mask, width, height)
		}
		encoded, err := h.maskBuilder.EncodeMask(mask)
		if err != nil {
			return nil, err
		}
		class := seg.Classes[i]
		result.Classes = append(result.Classes, model.DetectedClass{
			ID:          class.ID,
			Name:        class.Name,
			DisplayName: class.DisplayName,
			LegendColor: class.LegendColor,
			Mask:        encoded,
			Confidence:  mask.Confidence,
		})
	}

	return result, nil
}

// GetSegmentation 根据MD5获取分割结果
func (h *UploadHandler) GetSegmentation(c *gin.Context) {
	md5 := c.Param("md5")
	if md5 == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "MD5参数缺失",
		})
		return
	}

	ctx := context.Background()
	result, err := h.redis.GetSegmentation(ctx, md5)
	if err != nil {
		utils.Logger.Error("failed to get segmentation result", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "查询失败",
			Error:   err.Error(),
		})
		return
	}

	if result == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Message: "未找到该图片的分割信息",
		})
		return
	}

	c.JSON(http.StatusOK, model.UploadResponse{
		Success: true,
		Message: "查询成功",
		Data:    result,
	})
}

// ListClasses 返回语义分类表
func (h *UploadHandler) ListClasses(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"classes": model.Classes(),
	})
}

func (h *UploadHandler) isAllowedType(contentType string) bool {
	for _, allowed := range h.cfg.Upload.AllowedTypes {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}

// decodeImage 从文件解码图片
func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// smartResize 超过最大边长时等比缩小
func smartResize(img image.Image, maxSize int) image.Image {
	width := img.Bounds().Dx()
	height := img.Bounds().Dy()
	maxDim := max(width, height)
	if maxSize <= 0 || maxDim <= maxSize {
		return img
	}

	scale := float64(maxSize) / float64(maxDim)
	newWidth := int(float64(width) * scale)
	newHeight := int(float64(height) * scale)

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.ApproxBiLinear.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Over, nil)
	return resized
}
