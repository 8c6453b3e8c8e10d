package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gurkirtheerey/colormyhouse/model"
	"github.com/gurkirtheerey/colormyhouse/utils"
	"github.com/lucasb-eyer/go-colorful"
	"go.uber.org/zap"
)

// ColorProcessor 颜色变换引擎。
// 在HSL域内替换色调，保留每个像素的亮度通道，从而保住阴影和纹理细节。
// 无内部状态，可被任意多个调用方共享。
type ColorProcessor struct{}

func NewColorProcessor() *ColorProcessor {
	return &ColorProcessor{}
}

// ApplyColorChange 全分辨率换色。
// 原缓冲区不被修改；未选中像素原样拷贝到输出。
func (cp *ColorProcessor) ApplyColorChange(original *model.PixelBuffer, mask *model.CombinedMask, opts model.ColorChangeOptions) (*model.ProcessingResult, error) {
	if original == nil || !original.Valid() {
		return nil, model.ErrEmptyImage
	}
	if mask == nil || mask.Width != original.Width || mask.Height != original.Height {
		return nil, fmt.Errorf("mask dimensions %dx%d do not match image %dx%d",
			maskW(mask), maskH(mask), original.Width, original.Height)
	}

	startTime := time.Now()
	out := original.Clone()

	intensity := opts.Intensity
	if intensity < 0 {
		intensity = 0
	}
	if intensity > 1 {
		intensity = 1
	}

	// 强度为0等价于不做任何修改，直接返回拷贝，
	// 避免HSL往返带来的±1舍入痕迹
	if intensity == 0 {
		return &model.ProcessingResult{Pixels: out, Duration: time.Since(startTime)}, nil
	}

	targetH, targetS, targetL := hexToHsl(opts.TargetColor)

	w, h := original.Width, original.Height
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if mask.Data[i] == 0 {
				continue
			}

			pi := i * 4
			r, g, b := original.Pix[pi], original.Pix[pi+1], original.Pix[pi+2]
			origH, origS, origL := rgbToHsl(r, g, b)

			var candH, candS, candL float64
			if opts.PreserveTexture {
				// 目标色调 + 原始饱和度与亮度，再按亮度带修饰饱和度
				candH, candS, candL = targetH, origS, origL
				switch {
				case origL < 0.15:
					// 深阴影：压低饱和度
					if candS > 0.20 {
						candS = 0.20
					}
				case origL > 0.85:
					// 高光：同样压低
					if candS > 0.30 {
						candS = 0.30
					}
				default:
					candS = origS*0.4 + targetS*0.6
					if candS < 0.25 {
						candS = 0.25
					}
				}
			} else {
				// 不保留纹理：整体替换为目标色
				candH, candS, candL = targetH, targetS, targetL
			}

			finalH, finalS, finalL := candH, candS, candL
			if intensity < 1 {
				finalH = origH + (candH-origH)*intensity
				finalS = origS + (candS-origS)*intensity
			}

			nr, ng, nb := hslToRgb(finalH, finalS, finalL)

			if opts.BlendEdges {
				f := edgeBlendFactor(mask, x, y)
				if f < 1 {
					nr = mix(r, nr, f)
					ng = mix(g, ng, f)
					nb = mix(b, nb, f)
				}
			}

			out.Pix[pi] = nr
			out.Pix[pi+1] = ng
			out.Pix[pi+2] = nb
			// alpha保持原值
		}
	}

	return &model.ProcessingResult{Pixels: out, Duration: time.Since(startTime)}, nil
}

// CreatePreview 低分辨率预览：缓冲区做面积重采样，掩码做最近邻采样，
// 关闭边缘混合以换取吞吐量。调用方负责放大显示。
func (cp *ColorProcessor) CreatePreview(original *model.PixelBuffer, mask *model.CombinedMask, opts model.ColorChangeOptions, scale float64) (*model.ProcessingResult, error) {
	if original == nil || !original.Valid() {
		return nil, model.ErrEmptyImage
	}
	if mask == nil || mask.Width != original.Width || mask.Height != original.Height {
		return nil, fmt.Errorf("mask dimensions %dx%d do not match image %dx%d",
			maskW(mask), maskH(mask), original.Width, original.Height)
	}
	if scale <= 0 || scale > 1 {
		scale = 0.25
	}

	startTime := time.Now()

	pw := int(float64(original.Width) * scale)
	ph := int(float64(original.Height) * scale)
	if pw < 1 {
		pw = 1
	}
	if ph < 1 {
		ph = 1
	}

	small := imaging.Resize(original.ToRGBA(), pw, ph, imaging.Box)
	smallBuf, err := model.FromImage(small)
	if err != nil {
		return nil, err
	}
	smallMask := resampleMask(mask, pw, ph)

	opts.BlendEdges = false
	result, err := cp.ApplyColorChange(smallBuf, smallMask, opts)
	if err != nil {
		return nil, err
	}
	result.Duration = time.Since(startTime)

	utils.Logger.Debug("preview created",
		zap.Int("width", pw),
		zap.Int("height", ph),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// edgeBlendFactor 以(x,y)为中心统计5x5窗口内被选中的邻居占比，
// 下限0.5，用于在掩码边界做柔和过渡
func edgeBlendFactor(mask *model.CombinedMask, x, y int) float64 {
	selected, total := 0, 0
	for dy := -2; dy <= 2; dy++ {
		ny := y + dy
		if ny < 0 || ny >= mask.Height {
			continue
		}
		for dx := -2; dx <= 2; dx++ {
			nx := x + dx
			if nx < 0 || nx >= mask.Width {
				continue
			}
			total++
			if mask.Data[ny*mask.Width+nx] != 0 {
				selected++
			}
		}
	}
	if total == 0 {
		return 1
	}
	f := float64(selected) / float64(total)
	if f < 0.5 {
		f = 0.5
	}
	return f
}

// mix 原始值与新值的线性插值
func mix(orig, next uint8, f float64) uint8 {
	v := float64(orig)*(1-f) + float64(next)*f
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint8(v + 0.5)
}

// hexToHsl 解析#RRGGBB并转HSL；非法字符串按策略回退为黑色
func hexToHsl(hex string) (h, s, l float64) {
	c, err := colorful.Hex(strings.ToLower(strings.TrimSpace(hex)))
	if err != nil {
		return 0, 0, 0
	}
	return c.Hsl()
}

// rgbToHsl RGB转HSL，h取值[0,360)，s、l取值[0,1]
func rgbToHsl(r, g, b uint8) (h, s, l float64) {
	c := colorful.Color{
		R: float64(r) / 255.0,
		G: float64(g) / 255.0,
		B: float64(b) / 255.0,
	}
	return c.Hsl()
}

// hslToRgb HSL转回RGB
func hslToRgb(h, s, l float64) (r, g, b uint8) {
	return colorful.Hsl(h, s, l).Clamped().RGB255()
}

func maskW(m *model.CombinedMask) int {
	if m == nil {
		return 0
	}
	return m.Width
}

func maskH(m *model.CombinedMask) int {
	if m == nil {
		return 0
	}
	return m.Height
}
