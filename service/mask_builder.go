package service

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"math"
	"sort"

	"github.com/gurkirtheerey/colormyhouse/model"
)

// MaskBuilder 负责掩码栅格化、叠加与编解码。
// 手动多边形/画笔选区和分类器输出共用同一套掩码原语。
type MaskBuilder struct{}

func NewMaskBuilder() *MaskBuilder {
	return &MaskBuilder{}
}

// PolygonToMask 扫描线多边形填充。
// 每一行求出扫描线与各条边（末顶点回绕到首顶点闭合）的交点，
// 升序排序后按奇偶规则成对填充：奇数号交点开启区间，偶数号关闭。
// 自相交多边形同样遵循该奇偶语义，不视为未定义行为。
func (mb *MaskBuilder) PolygonToMask(points []model.Point, width, height, classID int) *model.ClassMask {
	mask := model.NewClassMask(classID, width, height)
	if len(points) < 3 {
		return mask
	}

	xs := make([]float64, 0, len(points))
	for y := 0; y < height; y++ {
		scanY := float64(y)
		xs = xs[:0]

		for i := range points {
			p1 := points[i]
			p2 := points[(i+1)%len(points)]
			if (p1.Y <= scanY && p2.Y > scanY) || (p2.Y <= scanY && p1.Y > scanY) {
				t := (scanY - p1.Y) / (p2.Y - p1.Y)
				xs = append(xs, p1.X+t*(p2.X-p1.X))
			}
		}
		sort.Float64s(xs)

		for i := 0; i+1 < len(xs); i += 2 {
			for x := int(math.Ceil(xs[i])); float64(x) < xs[i+1]; x++ {
				if x < 0 || x >= width {
					continue
				}
				mask.Data[y*width+x] = uint8(classID)
			}
		}
	}

	mask.UpdateConfidence()
	return mask
}

// Combine 按叠加优先级把选中分类的掩码合成为一个组合掩码。
// 优先级高的分类覆盖优先级低的，替代隐式的"后写者赢"。
func (mb *MaskBuilder) Combine(masks []*model.ClassMask, selected []int, width, height int) (*model.CombinedMask, error) {
	combined := model.NewCombinedMask(width, height)

	want := make(map[int]bool, len(selected))
	for _, id := range selected {
		if id != model.ClassBackground {
			want[id] = true
		}
	}

	ordered := make([]*model.ClassMask, 0, len(masks))
	for _, m := range masks {
		if m == nil || !want[m.ClassID] {
			continue
		}
		if m.Width != width || m.Height != height {
			return nil, fmt.Errorf("mask for class %d is %dx%d, want %dx%d",
				m.ClassID, m.Width, m.Height, width, height)
		}
		ordered = append(ordered, m)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return classPriority(ordered[i].ClassID) < classPriority(ordered[j].ClassID)
	})

	for _, m := range ordered {
		for i, v := range m.Data {
			if v != 0 {
				combined.Data[i] = v
			}
		}
	}
	return combined, nil
}

func classPriority(id int) int {
	if c, ok := model.ClassByID(id); ok {
		return c.Priority
	}
	return 0
}

// resampleMask 最近邻点采样，把掩码缩放到新尺寸（放大缩小皆可）
func resampleMask(mask *model.CombinedMask, newW, newH int) *model.CombinedMask {
	out := model.NewCombinedMask(newW, newH)
	if mask == nil {
		return out
	}
	for y := 0; y < newH; y++ {
		sy := y * mask.Height / newH
		for x := 0; x < newW; x++ {
			sx := x * mask.Width / newW
			out.Data[y*newW+x] = mask.Data[sy*mask.Width+sx]
		}
	}
	return out
}

// ResampleMask 导出版本，供上传流程把工作分辨率掩码还原到原图尺寸
func (mb *MaskBuilder) ResampleMask(mask *model.ClassMask, newW, newH int) *model.ClassMask {
	out := model.NewClassMask(mask.ClassID, newW, newH)
	for y := 0; y < newH; y++ {
		sy := y * mask.Height / newH
		for x := 0; x < newW; x++ {
			sx := x * mask.Width / newW
			out.Data[y*newW+x] = mask.Data[sy*mask.Width+sx]
		}
	}
	out.UpdateConfidence()
	return out
}

// EncodeMask 将掩码编码为Base64 PNG
func (mb *MaskBuilder) EncodeMask(mask *model.ClassMask) (string, error) {
	gray := image.NewGray(image.Rect(0, 0, mask.Width, mask.Height))
	for i, v := range mask.Data {
		if v != 0 {
			gray.Pix[i] = 255
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return "", fmt.Errorf("failed to encode mask: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeMask 从Base64 PNG还原掩码（缓存回读路径）
func (mb *MaskBuilder) DecodeMask(encoded string, classID int) (*model.ClassMask, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode mask base64: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode mask png: %w", err)
	}

	bounds := img.Bounds()
	mask := model.NewClassMask(classID, bounds.Dx(), bounds.Dy())
	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			r, _, _, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			if r > 0x7fff {
				mask.Data[y*mask.Width+x] = uint8(classID)
			}
		}
	}
	mask.UpdateConfidence()
	return mask, nil
}
