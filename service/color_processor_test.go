package service

import (
	"math"
	"math/rand"
	"os"
	"testing"

	"github.com/gurkirtheerey/colormyhouse/model"
	"github.com/gurkirtheerey/colormyhouse/utils"
)

func TestMain(m *testing.M) {
	if err := utils.InitLogger("release"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// uniformBuffer 生成单色测试图
func uniformBuffer(t *testing.T, w, h int, r, g, b uint8) *model.PixelBuffer {
	t.Helper()
	buf, err := model.NewPixelBuffer(w, h)
	if err != nil {
		t.Fatalf("NewPixelBuffer(%d, %d): %v", w, h, err)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			buf.SetRGBA(x, y, r, g, b, 255)
		}
	}
	return buf
}

// fullMask 全选掩码
func fullMask(w, h, classID int) *model.CombinedMask {
	mask := model.NewCombinedMask(w, h)
	for i := range mask.Data {
		mask.Data[i] = uint8(classID)
	}
	return mask
}

func TestApplyColorChangeUnselectedPassThrough(t *testing.T) {
	cp := NewColorProcessor()
	buf := uniformBuffer(t, 8, 8, 120, 60, 200)
	// 掩码全零：任何像素都不应被修改
	mask := model.NewCombinedMask(8, 8)

	result, err := cp.ApplyColorChange(buf, mask, model.ColorChangeOptions{
		TargetColor: "#FF0000", PreserveTexture: true, Intensity: 1,
	})
	if err != nil {
		t.Fatalf("ApplyColorChange: %v", err)
	}
	for i := range buf.Pix {
		if result.Pixels.Pix[i] != buf.Pix[i] {
			t.Fatalf("pixel byte %d changed: got %d, want %d", i, result.Pixels.Pix[i], buf.Pix[i])
		}
	}
}

func TestApplyColorChangePreservesLightness(t *testing.T) {
	cp := NewColorProcessor()
	// 中灰图，亮度约50%
	buf := uniformBuffer(t, 10, 10, 0x80, 0x80, 0x80)
	mask := fullMask(10, 10, model.ClassWalls)

	result, err := cp.ApplyColorChange(buf, mask, model.ColorChangeOptions{
		TargetColor:     "#FF0000",
		PreserveTexture: true,
		BlendEdges:      false,
		Intensity:       1,
	})
	if err != nil {
		t.Fatalf("ApplyColorChange: %v", err)
	}

	_, _, wantL := rgbToHsl(0x80, 0x80, 0x80)
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			r, g, b, a := result.Pixels.RGBA(x, y)
			if a != 255 {
				t.Fatalf("alpha changed at (%d,%d): %d", x, y, a)
			}
			gotH, _, gotL := rgbToHsl(r, g, b)
			if math.Abs(gotL-wantL) > 1.5/255.0 {
				t.Errorf("lightness at (%d,%d): got %.4f, want %.4f", x, y, gotL, wantL)
			}
			// 色调应移向红色
			if gotH > 20 && gotH < 340 {
				t.Errorf("hue at (%d,%d): got %.1f, want near 0", x, y, gotH)
			}
		}
	}
}

func TestApplyColorChangeIntensityZero(t *testing.T) {
	cp := NewColorProcessor()
	buf := uniformBuffer(t, 6, 6, 10, 200, 90)
	mask := fullMask(6, 6, model.ClassRoof)

	result, err := cp.ApplyColorChange(buf, mask, model.ColorChangeOptions{
		TargetColor: "#0000FF", PreserveTexture: false, Intensity: 0,
	})
	if err != nil {
		t.Fatalf("ApplyColorChange: %v", err)
	}
	for i := range buf.Pix {
		if result.Pixels.Pix[i] != buf.Pix[i] {
			t.Fatalf("intensity=0 must not change pixels, byte %d differs", i)
		}
	}
}

func TestApplyColorChangeIntensityPartial(t *testing.T) {
	cp := NewColorProcessor()
	buf := uniformBuffer(t, 4, 4, 0x80, 0x80, 0x80)
	mask := fullMask(4, 4, model.ClassWalls)

	full, err := cp.ApplyColorChange(buf, mask, model.ColorChangeOptions{
		TargetColor: "#FF0000", PreserveTexture: true, Intensity: 1,
	})
	if err != nil {
		t.Fatalf("full: %v", err)
	}
	half, err := cp.ApplyColorChange(buf, mask, model.ColorChangeOptions{
		TargetColor: "#FF0000", PreserveTexture: true, Intensity: 0.5,
	})
	if err != nil {
		t.Fatalf("half: %v", err)
	}

	fr, fg, fb, _ := full.Pixels.RGBA(2, 2)
	hr, hg, hb, _ := half.Pixels.RGBA(2, 2)
	or, og, ob, _ := buf.RGBA(2, 2)
	if fr == hr && fg == hg && fb == hb {
		t.Error("intensity 0.5 should differ from intensity 1")
	}
	if hr == or && hg == og && hb == ob {
		t.Error("intensity 0.5 should differ from the original")
	}
}

func TestHslRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		r := uint8(rng.Intn(256))
		g := uint8(rng.Intn(256))
		b := uint8(rng.Intn(256))

		h, s, l := rgbToHsl(r, g, b)
		r2, g2, b2 := hslToRgb(h, s, l)

		if absDiff(r, r2) > 1 || absDiff(g, g2) > 1 || absDiff(b, b2) > 1 {
			t.Fatalf("round trip (%d,%d,%d) -> (%d,%d,%d)", r, g, b, r2, g2, b2)
		}
	}
}

func TestMalformedHexFallsBackToBlack(t *testing.T) {
	cp := NewColorProcessor()
	buf := uniformBuffer(t, 3, 3, 200, 100, 50)
	mask := fullMask(3, 3, model.ClassWalls)

	result, err := cp.ApplyColorChange(buf, mask, model.ColorChangeOptions{
		TargetColor: "not-a-color", PreserveTexture: false, Intensity: 1,
	})
	if err != nil {
		t.Fatalf("ApplyColorChange: %v", err)
	}
	r, g, b, _ := result.Pixels.RGBA(1, 1)
	if r != 0 || g != 0 || b != 0 {
		t.Errorf("expected black fallback, got (%d,%d,%d)", r, g, b)
	}
}

func TestCreatePreviewDimensions(t *testing.T) {
	cp := NewColorProcessor()
	buf := uniformBuffer(t, 400, 400, 0x80, 0x80, 0x80)
	mask := fullMask(400, 400, model.ClassWalls)

	result, err := cp.CreatePreview(buf, mask, model.ColorChangeOptions{
		TargetColor: "#00FF00", PreserveTexture: true, Intensity: 1,
	}, 0.25)
	if err != nil {
		t.Fatalf("CreatePreview: %v", err)
	}
	if result.Pixels.Width != 100 || result.Pixels.Height != 100 {
		t.Errorf("preview size: got %dx%d, want 100x100", result.Pixels.Width, result.Pixels.Height)
	}
	if result.Duration < 0 {
		t.Errorf("duration must be non-negative, got %v", result.Duration)
	}
}

func TestCreatePreviewRejectsMismatchedMask(t *testing.T) {
	cp := NewColorProcessor()
	buf := uniformBuffer(t, 400, 400, 0x80, 0x80, 0x80)
	// 掩码尺寸与原图不一致时必须报错，而不是静默重采样
	mask := fullMask(200, 200, model.ClassWalls)

	_, err := cp.CreatePreview(buf, mask, model.ColorChangeOptions{
		TargetColor: "#00FF00", PreserveTexture: true, Intensity: 1,
	}, 0.25)
	if err == nil {
		t.Fatal("CreatePreview should reject a mask whose dimensions differ from the image")
	}

	if _, err := cp.CreatePreview(buf, nil, model.ColorChangeOptions{
		TargetColor: "#00FF00", Intensity: 1,
	}, 0.25); err == nil {
		t.Fatal("CreatePreview should reject a nil mask")
	}
}

func TestEdgeBlendSoftensBoundary(t *testing.T) {
	cp := NewColorProcessor()
	buf := uniformBuffer(t, 20, 20, 0x80, 0x80, 0x80)
	// 只选中左半边
	mask := model.NewCombinedMask(20, 20)
	for y := 0; y < 20; y++ {
		for x := 0; x < 10; x++ {
			mask.Data[y*20+x] = uint8(model.ClassWalls)
		}
	}
	opts := model.ColorChangeOptions{
		TargetColor: "#FF0000", PreserveTexture: true, Intensity: 1,
	}

	plain, err := cp.ApplyColorChange(buf, mask, opts)
	if err != nil {
		t.Fatalf("plain: %v", err)
	}
	opts.BlendEdges = true
	blended, err := cp.ApplyColorChange(buf, mask, opts)
	if err != nil {
		t.Fatalf("blended: %v", err)
	}

	// 远离边界的像素：混合系数为1，两者一致
	pr, pg, pb, _ := plain.Pixels.RGBA(2, 10)
	br, bg, bb, _ := blended.Pixels.RGBA(2, 10)
	if pr != br || pg != bg || pb != bb {
		t.Error("interior pixel should be unaffected by edge blending")
	}

	// 边界列像素：应介于原值与完全换色之间
	pr, _, _, _ = plain.Pixels.RGBA(9, 10)
	br, _, _, _ = blended.Pixels.RGBA(9, 10)
	or, _, _, _ := buf.RGBA(9, 10)
	if br == pr {
		t.Error("boundary pixel should be pulled toward the original")
	}
	if br == or {
		t.Error("boundary pixel should still be partially recolored")
	}
}

func TestApplyColorChangeDimensionMismatch(t *testing.T) {
	cp := NewColorProcessor()
	buf := uniformBuffer(t, 8, 8, 1, 2, 3)
	mask := model.NewCombinedMask(4, 4)

	if _, err := cp.ApplyColorChange(buf, mask, model.ColorChangeOptions{
		TargetColor: "#FFFFFF", Intensity: 1,
	}); err == nil {
		t.Fatal("expected error for mismatched mask dimensions")
	}
}

func absDiff(a, b uint8) int {
	d := int(a) - int(b)
	if d < 0 {
		d = -d
	}
	return d
}
