package service

import (
	"math"

	"github.com/gurkirtheerey/colormyhouse/model"
)

// EdgeDetector 负责Sobel梯度边缘检测
type EdgeDetector struct {
	threshold float64 // 梯度幅值阈值
}

func NewEdgeDetector(threshold float64) *EdgeDetector {
	return &EdgeDetector{threshold: threshold}
}

// EdgeMap 边缘检测结果
type EdgeMap struct {
	Width    int
	Height   int
	Edges    []bool // 梯度幅值超过阈值
	Vertical []bool // 水平梯度主导的边缘，即图像中的竖直边缘
}

// IsEdge 像素(x,y)是否为边缘
func (em *EdgeMap) IsEdge(x, y int) bool {
	return em.Edges[y*em.Width+x]
}

// HasEdgeNear 以(x,y)为中心、给定半径的方形窗口内是否存在边缘
func (em *EdgeMap) HasEdgeNear(x, y, radius int) bool {
	for dy := -radius; dy <= radius; dy++ {
		ny := y + dy
		if ny < 0 || ny >= em.Height {
			continue
		}
		for dx := -radius; dx <= radius; dx++ {
			nx := x + dx
			if nx < 0 || nx >= em.Width {
				continue
			}
			if em.Edges[ny*em.Width+nx] {
				return true
			}
		}
	}
	return false
}

// HasVerticalEdgeNear 同一列上下rows行范围内是否存在竖直边缘
func (em *EdgeMap) HasVerticalEdgeNear(x, y, rows int) bool {
	for dy := -rows; dy <= rows; dy++ {
		ny := y + dy
		if ny < 0 || ny >= em.Height {
			continue
		}
		if em.Vertical[ny*em.Width+x] {
			return true
		}
	}
	return false
}

// Detect 先按三通道均值转灰度，再做3x3 Sobel卷积
func (ed *EdgeDetector) Detect(buf *model.PixelBuffer) *EdgeMap {
	w, h := buf.Width, buf.Height
	em := &EdgeMap{
		Width:    w,
		Height:   h,
		Edges:    make([]bool, w*h),
		Vertical: make([]bool, w*h),
	}

	gray := make([]float64, w*h)
	for i := 0; i < w*h; i++ {
		pi := i * 4
		gray[i] = (float64(buf.Pix[pi]) + float64(buf.Pix[pi+1]) + float64(buf.Pix[pi+2])) / 3.0
	}

	// 边界一圈不做卷积，保持非边缘
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			tl := gray[(y-1)*w+x-1]
			tc := gray[(y-1)*w+x]
			tr := gray[(y-1)*w+x+1]
			ml := gray[y*w+x-1]
			mr := gray[y*w+x+1]
			bl := gray[(y+1)*w+x-1]
			bc := gray[(y+1)*w+x]
			br := gray[(y+1)*w+x+1]

			gx := -tl + tr - 2*ml + 2*mr - bl + br
			gy := -tl - 2*tc - tr + bl + 2*bc + br

			mag := math.Sqrt(gx*gx + gy*gy)
			if mag > ed.threshold {
				i := y*w + x
				em.Edges[i] = true
				if math.Abs(gx) >= math.Abs(gy) {
					em.Vertical[i] = true
				}
			}
		}
	}

	return em
}
