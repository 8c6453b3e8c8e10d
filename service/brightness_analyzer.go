package service

import (
	"github.com/gurkirtheerey/colormyhouse/model"
)

// BrightnessAnalyzer 负责计算感知亮度图
type BrightnessAnalyzer struct{}

func NewBrightnessAnalyzer() *BrightnessAnalyzer {
	return &BrightnessAnalyzer{}
}

// BrightnessMap 亮度图，取值[0,1]
type BrightnessMap struct {
	Width  int
	Height int
	Luma   []float64
}

// At 像素(x,y)的亮度
func (bm *BrightnessMap) At(x, y int) float64 {
	return bm.Luma[y*bm.Width+x]
}

// Analyze 按感知亮度公式 0.299R+0.587G+0.114B 计算并归一化到[0,1]
func (ba *BrightnessAnalyzer) Analyze(buf *model.PixelBuffer) *BrightnessMap {
	w, h := buf.Width, buf.Height
	bm := &BrightnessMap{
		Width:  w,
		Height: h,
		Luma:   make([]float64, w*h),
	}
	for i := 0; i < w*h; i++ {
		pi := i * 4
		bm.Luma[i] = (0.299*float64(buf.Pix[pi]) +
			0.587*float64(buf.Pix[pi+1]) +
			0.114*float64(buf.Pix[pi+2])) / 255.0
	}
	return bm
}
