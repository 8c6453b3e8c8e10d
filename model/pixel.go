package model

import (
	"errors"
	"image"
	"image/draw"
)

// ErrEmptyImage 零尺寸像素缓冲区
var ErrEmptyImage = errors.New("pixel buffer has zero area")

// PixelBuffer RGBA像素缓冲区，行优先，每通道8位。
// 核心处理流程约定不原地修改缓冲区，每次变换产生新的缓冲区。
type PixelBuffer struct {
	Width  int
	Height int
	Pix    []uint8 // 长度 = Width*Height*4
}

// NewPixelBuffer 创建空白缓冲区
func NewPixelBuffer(width, height int) (*PixelBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrEmptyImage
	}
	return &PixelBuffer{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*4),
	}, nil
}

// FromImage 将解码后的图片转换为像素缓冲区
func FromImage(img image.Image) (*PixelBuffer, error) {
	bounds := img.Bounds()
	buf, err := NewPixelBuffer(bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, err
	}

	rgba := image.NewRGBA(image.Rect(0, 0, buf.Width, buf.Height))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	copy(buf.Pix, rgba.Pix)
	return buf, nil
}

// Valid 校验缓冲区尺寸与数据长度
func (p *PixelBuffer) Valid() bool {
	return p != nil && p.Width > 0 && p.Height > 0 && len(p.Pix) == p.Width*p.Height*4
}

// Offset 像素(x,y)在Pix中的起始下标
func (p *PixelBuffer) Offset(x, y int) int {
	return (y*p.Width + x) * 4
}

// RGBA 读取像素
func (p *PixelBuffer) RGBA(x, y int) (r, g, b, a uint8) {
	i := p.Offset(x, y)
	return p.Pix[i], p.Pix[i+1], p.Pix[i+2], p.Pix[i+3]
}

// SetRGBA 写入像素
func (p *PixelBuffer) SetRGBA(x, y int, r, g, b, a uint8) {
	i := p.Offset(x, y)
	p.Pix[i] = r
	p.Pix[i+1] = g
	p.Pix[i+2] = b
	p.Pix[i+3] = a
}

// Clone 深拷贝
func (p *PixelBuffer) Clone() *PixelBuffer {
	pix := make([]uint8, len(p.Pix))
	copy(pix, p.Pix)
	return &PixelBuffer{Width: p.Width, Height: p.Height, Pix: pix}
}

// ToRGBA 转换为标准库RGBA图像（拷贝数据）
func (p *PixelBuffer) ToRGBA() *image.RGBA {
	rgba := image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	copy(rgba.Pix, p.Pix)
	return rgba
}
