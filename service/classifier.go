package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/gurkirtheerey/colormyhouse/config"
	"github.com/gurkirtheerey/colormyhouse/model"
	"github.com/gurkirtheerey/colormyhouse/utils"
	"go.uber.org/zap"
)

// ErrNotInitialized 分类器尚未初始化
var ErrNotInitialized = errors.New("classifier not initialized")

// 分类器生命周期状态
const (
	stateUninitialized int32 = iota
	stateReady
)

// ClassifierService 负责把房屋照片按建筑语义逐像素分类。
// 三个独立的分析通道（区域生长、边缘检测、亮度）先各自跑完，
// 再由每个分类的启发式规则组合出掩码。
type ClassifierService struct {
	minConfidence float64
	semaphore     chan struct{}
	queueTimeout  time.Duration
	jitter        bool
	jitterSeed    int64
	state         int32

	regionGrower *RegionGrower
	edgeDetector *EdgeDetector
	brightness   *BrightnessAnalyzer
}

func NewClassifierService(cfg *config.ClassifierConfig) *ClassifierService {
	return &ClassifierService{
		minConfidence: cfg.MinConfidence,
		semaphore:     make(chan struct{}, cfg.MaxConcurrent),
		queueTimeout:  time.Duration(cfg.QueueTimeout) * time.Second,
		jitter:        cfg.Jitter,
		jitterSeed:    cfg.JitterSeed,
		regionGrower:  NewRegionGrower(cfg.ColorThreshold),
		edgeDetector:  NewEdgeDetector(cfg.EdgeThreshold),
		brightness:    NewBrightnessAnalyzer(),
	}
}

// Initialize 把分类器从Uninitialized推进到Ready。
// 重复调用是幂等的。
func (s *ClassifierService) Initialize() error {
	atomic.StoreInt32(&s.state, stateReady)
	return nil
}

// Ready 分类器是否就绪
func (s *ClassifierService) Ready() bool {
	return atomic.LoadInt32(&s.state) == stateReady
}

// Classify 对像素缓冲区执行一次完整分类。
// 对相同输入（且未开启抖动）输出逐位一致。
// 置信度不超过阈值的分类不会出现在结果中：调用方须把"分类缺席"
// 理解为"未检测到"，而不是"检测到零个像素"。
func (s *ClassifierService) Classify(ctx context.Context, buf *model.PixelBuffer) (*model.Segmentation, error) {
	if !s.Ready() {
		return nil, ErrNotInitialized
	}
	if buf == nil || !buf.Valid() {
		return nil, model.ErrEmptyImage
	}

	// 并发控制
	qctx, cancel := context.WithTimeout(ctx, s.queueTimeout)
	defer cancel()

	select {
	case s.semaphore <- struct{}{}:
		defer func() { <-s.semaphore }()
	case <-qctx.Done():
		return nil, fmt.Errorf("处理队列已满，请稍后重试")
	}

	startTime := time.Now()
	w, h := buf.Width, buf.Height

	regions := s.regionGrower.Grow(buf)
	edges := s.edgeDetector.Detect(buf)
	luma := s.brightness.Analyze(buf)

	var rng *rand.Rand
	if s.jitter {
		rng = rand.New(rand.NewSource(s.jitterSeed))
	}

	seg := &model.Segmentation{Width: w, Height: h}
	total := float64(w * h)

	for _, class := range model.Classes() {
		mask := s.detectClass(class.ID, buf, regions, edges, luma)
		if mask == nil {
			continue
		}
		if rng != nil {
			jitterBoundary(mask, rng)
		}
		mask.UpdateConfidence()
		if mask.Confidence <= s.minConfidence {
			continue
		}
		seg.Masks = append(seg.Masks, mask)
		seg.Classes = append(seg.Classes, class)
	}

	utils.Logger.Info("image classified",
		zap.Int("width", w),
		zap.Int("height", h),
		zap.Int("classes", len(seg.Classes)),
		zap.Duration("duration", time.Since(startTime)),
		zap.Float64("pixels", total))

	return seg, nil
}

// detectClass 分发到各分类的启发式规则；没有规则的分类（装饰线条
// 只能手动圈选）返回nil。
func (s *ClassifierService) detectClass(classID int, buf *model.PixelBuffer, regions *RegionMap, edges *EdgeMap, luma *BrightnessMap) *model.ClassMask {
	switch classID {
	case model.ClassSky:
		return s.detectSky(buf, luma)
	case model.ClassRoof:
		return s.detectRoof(buf, luma)
	case model.ClassWalls:
		return s.detectWalls(buf, regions, edges)
	case model.ClassWindows:
		return s.detectWindows(buf, edges, luma)
	case model.ClassDoors:
		return s.detectDoors(buf, edges, luma)
	case model.ClassLandscape:
		return s.detectLandscape(buf)
	default:
		return nil
	}
}

// detectSky 天空：上部60%且蓝色主导且明亮，或上部40%且非常亮
func (s *ClassifierService) detectSky(buf *model.PixelBuffer, luma *BrightnessMap) *model.ClassMask {
	w, h := buf.Width, buf.Height
	mask := model.NewClassMask(model.ClassSky, w, h)
	upper60 := h * 6 / 10
	upper40 := h * 4 / 10

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := buf.RGBA(x, y)
			l := luma.At(x, y)
			blueDominant := b > r && b > g
			if (y < upper60 && blueDominant && l > 0.5) || (y < upper40 && l > 0.75) {
				mask.Data[y*w+x] = uint8(model.ClassSky)
			}
		}
	}
	return mask
}

// detectRoof 屋顶：上半部、偏暗、偏红或灰度一致
func (s *ClassifierService) detectRoof(buf *model.PixelBuffer, luma *BrightnessMap) *model.ClassMask {
	w, h := buf.Width, buf.Height
	mask := model.NewClassMask(model.ClassRoof, w, h)
	upper50 := h / 2

	for y := 0; y < upper50; y++ {
		for x := 0; x < w; x++ {
			if luma.At(x, y) >= 0.5 {
				continue
			}
			r, g, b, _ := buf.RGBA(x, y)
			reddish := int(r) > int(b)+10 && r >= g
			grayish := channelSpread(r, g, b) < 30
			if reddish || grayish {
				mask.Data[y*w+x] = uint8(model.ClassRoof)
			}
		}
	}
	return mask
}

// detectWalls 墙面：20%-80%高度带内、属于占全图5%以上的均匀色块、
// 非边缘，且色调既不偏蓝也不偏植物绿
func (s *ClassifierService) detectWalls(buf *model.PixelBuffer, regions *RegionMap, edges *EdgeMap) *model.ClassMask {
	w, h := buf.Width, buf.Height
	mask := model.NewClassMask(model.ClassWalls, w, h)
	top := h * 2 / 10
	bottom := h * 8 / 10
	minArea := w * h / 20

	for y := top; y < bottom; y++ {
		for x := 0; x < w; x++ {
			if regions.AreaOf(x, y) < minArea || edges.IsEdge(x, y) {
				continue
			}
			r, g, b, _ := buf.RGBA(x, y)
			if int(b) > int(r)+15 {
				continue // 偏蓝：天空或玻璃反光
			}
			if int(g) > int(r)+15 && int(g) > int(b)+15 {
				continue // 偏绿：植被
			}
			mask.Data[y*w+x] = uint8(model.ClassWalls)
		}
	}
	return mask
}

// detectWindows 窗户：20%-80%高度带内、明亮、5像素半径内有边缘、
// 且通过反光颜色测试（偏蓝或接近中性灰）
func (s *ClassifierService) detectWindows(buf *model.PixelBuffer, edges *EdgeMap, luma *BrightnessMap) *model.ClassMask {
	w, h := buf.Width, buf.Height
	mask := model.NewClassMask(model.ClassWindows, w, h)
	top := h * 2 / 10
	bottom := h * 8 / 10

	for y := top; y < bottom; y++ {
		for x := 0; x < w; x++ {
			if luma.At(x, y) <= 0.6 {
				continue
			}
			if !edges.HasEdgeNear(x, y, 5) {
				continue
			}
			r, g, b, _ := buf.RGBA(x, y)
			reflective := (b > r && b > g) || channelSpread(r, g, b) < 25
			if reflective {
				mask.Data[y*w+x] = uint8(model.ClassWindows)
			}
		}
	}
	return mask
}

// detectDoors 门：高度40%-90%、宽度20%-80%、位于图像下半部、
// 同列±3行内有竖直边缘，且颜色偏棕、接近纯白或接近纯黑
func (s *ClassifierService) detectDoors(buf *model.PixelBuffer, edges *EdgeMap, luma *BrightnessMap) *model.ClassMask {
	w, h := buf.Width, buf.Height
	mask := model.NewClassMask(model.ClassDoors, w, h)
	top := h * 4 / 10
	bottom := h * 9 / 10
	left := w * 2 / 10
	right := w * 8 / 10
	mid := h / 2

	for y := top; y < bottom; y++ {
		if y <= mid {
			continue
		}
		for x := left; x < right; x++ {
			if !edges.HasVerticalEdgeNear(x, y, 3) {
				continue
			}
			r, g, b, _ := buf.RGBA(x, y)
			l := luma.At(x, y)
			brownish := r > g && g > b && int(r)-int(b) > 20
			nearWhite := l > 0.85 && channelSpread(r, g, b) < 30
			nearBlack := l < 0.15
			if brownish || nearWhite || nearBlack {
				mask.Data[y*w+x] = uint8(model.ClassDoors)
			}
		}
	}
	return mask
}

// detectLandscape 园林：下部25%、偏绿或偏棕
func (s *ClassifierService) detectLandscape(buf *model.PixelBuffer) *model.ClassMask {
	w, h := buf.Width, buf.Height
	mask := model.NewClassMask(model.ClassLandscape, w, h)
	top := h * 3 / 4

	for y := top; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := buf.RGBA(x, y)
			greenish := g > r && g > b
			brownish := r > g && g > b && int(r)-int(b) > 20
			if greenish || brownish {
				mask.Data[y*w+x] = uint8(model.ClassLandscape)
			}
		}
	}
	return mask
}

// channelSpread 三通道最大最小差，用于判断灰度一致性
func channelSpread(r, g, b uint8) int {
	maxc, minc := int(r), int(r)
	for _, v := range [2]int{int(g), int(b)} {
		if v > maxc {
			maxc = v
		}
		if v < minc {
			minc = v
		}
	}
	return maxc - minc
}

// jitterBoundary 对掩码边界做伪随机腐蚀，让轮廓看起来不那么机械。
// 随机源由调用方用固定种子注入，保证可复现。
func jitterBoundary(mask *model.ClassMask, rng *rand.Rand) {
	w, h := mask.Width, mask.Height
	drop := make([]int, 0, 256)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if mask.Data[i] == 0 {
				continue
			}
			onBoundary := x == 0 || x == w-1 || y == 0 || y == h-1 ||
				mask.Data[i-1] == 0 || mask.Data[i+1] == 0 ||
				mask.Data[i-w] == 0 || mask.Data[i+w] == 0
			if onBoundary && rng.Float64() < 0.35 {
				drop = append(drop, i)
			}
		}
	}
	for _, i := range drop {
		mask.Data[i] = 0
	}
}
