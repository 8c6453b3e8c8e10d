package model

import "time"

// ColorChangeOptions 一次换色调用的参数，按值传递，调用间不共享
type ColorChangeOptions struct {
	TargetColor     string  `json:"target_color"` // #RRGGBB
	PreserveTexture bool    `json:"preserve_texture"`
	BlendEdges      bool    `json:"blend_edges"`
	Intensity       float64 `json:"intensity"` // [0,1]
}

// ProcessingResult 换色输出：新的像素缓冲区与实测耗时
type ProcessingResult struct {
	Pixels   *PixelBuffer
	Duration time.Duration
}
