package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gurkirtheerey/colormyhouse/model"
)

var (
	// ErrSuperseded 请求在等待或计算期间被更新的请求取代
	ErrSuperseded = errors.New("preview request superseded by a newer request")
	// ErrFinalInFlight 已有一次全分辨率换色在执行
	ErrFinalInFlight = errors.New("final transform already in flight")
)

// PreviewJob 一次预览请求的全部输入
type PreviewJob struct {
	Pixels  *model.PixelBuffer
	Mask    *model.CombinedMask
	Options model.ColorChangeOptions
	Scale   float64
}

// PreviewCoordinator 预览请求的去抖与乱序丢弃。
// 每个请求领取单调递增的序号；结果只有在其序号仍是最新时才会生效，
// 晚到的旧结果被丢弃，保证慢请求不会覆盖新请求的画面。
// 全分辨率换色不去抖，但同一会话同时只允许一次在途。
type PreviewCoordinator struct {
	processor *ColorProcessor
	debounce  time.Duration

	mu      sync.Mutex
	seq     uint64 // 最近一次发出的请求序号
	applied uint64 // 最近一次生效的结果序号

	finalBusy int32
}

func NewPreviewCoordinator(processor *ColorProcessor, debounce time.Duration) *PreviewCoordinator {
	return &PreviewCoordinator{
		processor: processor,
		debounce:  debounce,
	}
}

// Do 执行一次去抖预览。
// 先等待去抖窗口，若期间出现更新的请求则直接放弃；
// 计算完成后再次校验序号，保证只有最新请求的结果被返回。
func (pc *PreviewCoordinator) Do(ctx context.Context, job PreviewJob) (*model.ProcessingResult, uint64, error) {
	pc.mu.Lock()
	pc.seq++
	seq := pc.seq
	pc.mu.Unlock()

	if pc.debounce > 0 {
		timer := time.NewTimer(pc.debounce)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, seq, ctx.Err()
		}
	}

	if pc.latest() != seq {
		return nil, seq, ErrSuperseded
	}

	result, err := pc.processor.CreatePreview(job.Pixels, job.Mask, job.Options, job.Scale)
	if err != nil {
		return nil, seq, err
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()
	if seq != pc.seq || seq <= pc.applied {
		return nil, seq, ErrSuperseded
	}
	pc.applied = seq
	return result, seq, nil
}

// BeginFinal 占用全分辨率换色槽位；已被占用时返回ErrFinalInFlight
func (pc *PreviewCoordinator) BeginFinal() error {
	if !atomic.CompareAndSwapInt32(&pc.finalBusy, 0, 1) {
		return ErrFinalInFlight
	}
	return nil
}

// EndFinal 释放全分辨率换色槽位
func (pc *PreviewCoordinator) EndFinal() {
	atomic.StoreInt32(&pc.finalBusy, 0)
}

func (pc *PreviewCoordinator) latest() uint64 {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.seq
}
