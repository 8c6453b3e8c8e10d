package service

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/gurkirtheerey/colormyhouse/config"
	"github.com/gurkirtheerey/colormyhouse/model"
)

func testClassifierConfig() *config.ClassifierConfig {
	return &config.ClassifierConfig{
		ColorThreshold: 30,
		EdgeThreshold:  50,
		MinConfidence:  0.1,
		MaxDimension:   1200,
		MaxConcurrent:  2,
		QueueTimeout:   5,
		Jitter:         false,
		JitterSeed:     1,
	}
}

func newTestClassifier(t *testing.T) *ClassifierService {
	t.Helper()
	s := NewClassifierService(testClassifierConfig())
	if err := s.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return s
}

// houseSceneBuffer 合成测试图：上60%天空蓝，下40%草绿
func houseSceneBuffer(t *testing.T) *model.PixelBuffer {
	t.Helper()
	buf, err := model.NewPixelBuffer(100, 100)
	if err != nil {
		t.Fatalf("NewPixelBuffer: %v", err)
	}
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			if y < 60 {
				buf.SetRGBA(x, y, 0x87, 0xCE, 0xEB, 255) // #87CEEB
			} else {
				buf.SetRGBA(x, y, 0x22, 0x8B, 0x22, 255) // #228B22
			}
		}
	}
	return buf
}

func findMask(seg *model.Segmentation, classID int) *model.ClassMask {
	for _, m := range seg.Masks {
		if m.ClassID == classID {
			return m
		}
	}
	return nil
}

func TestClassifyRequiresInitialization(t *testing.T) {
	s := NewClassifierService(testClassifierConfig())
	buf := houseSceneBuffer(t)

	if _, err := s.Classify(context.Background(), buf); err != ErrNotInitialized {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if s.Ready() {
		t.Fatal("classifier should not be ready before Initialize")
	}
}

func TestClassifyRejectsEmptyBuffer(t *testing.T) {
	s := newTestClassifier(t)

	if _, err := s.Classify(context.Background(), &model.PixelBuffer{}); err != model.ErrEmptyImage {
		t.Fatalf("expected ErrEmptyImage, got %v", err)
	}
	if _, err := s.Classify(context.Background(), nil); err != model.ErrEmptyImage {
		t.Fatalf("expected ErrEmptyImage for nil buffer, got %v", err)
	}
}

func TestClassifySkyAndLandscapeScene(t *testing.T) {
	s := newTestClassifier(t)
	buf := houseSceneBuffer(t)

	seg, err := s.Classify(context.Background(), buf)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	sky := findMask(seg, model.ClassSky)
	if sky == nil {
		t.Fatal("sky mask not detected")
	}
	if math.Abs(sky.Confidence-0.6) > 0.05 {
		t.Errorf("sky confidence: got %.3f, want ~0.6", sky.Confidence)
	}
	// 天空掩码应覆盖第0-59行，第60行以下为空
	for _, y := range []int{0, 30, 59} {
		if sky.Data[y*100+50] == 0 {
			t.Errorf("sky mask missing at row %d", y)
		}
	}
	for _, y := range []int{60, 80, 99} {
		if sky.Data[y*100+50] != 0 {
			t.Errorf("sky mask should not cover row %d", y)
		}
	}

	landscape := findMask(seg, model.ClassLandscape)
	if landscape == nil {
		t.Fatal("landscape mask not detected")
	}
	if math.Abs(landscape.Confidence-0.25) > 0.05 {
		t.Errorf("landscape confidence: got %.3f, want ~0.25", landscape.Confidence)
	}
	for _, y := range []int{75, 90, 99} {
		if landscape.Data[y*100+50] == 0 {
			t.Errorf("landscape mask missing at row %d", y)
		}
	}

	// 其余分类不应超过置信度阈值
	for _, id := range []int{model.ClassWalls, model.ClassRoof, model.ClassWindows, model.ClassDoors} {
		if m := findMask(seg, id); m != nil {
			t.Errorf("class %d unexpectedly detected with confidence %.3f", id, m.Confidence)
		}
	}
}

func TestClassifyDeterministic(t *testing.T) {
	s := newTestClassifier(t)
	buf := houseSceneBuffer(t)

	first, err := s.Classify(context.Background(), buf)
	if err != nil {
		t.Fatalf("first Classify: %v", err)
	}
	second, err := s.Classify(context.Background(), buf)
	if err != nil {
		t.Fatalf("second Classify: %v", err)
	}

	if len(first.Masks) != len(second.Masks) {
		t.Fatalf("mask count differs: %d vs %d", len(first.Masks), len(second.Masks))
	}
	for i := range first.Masks {
		if !bytes.Equal(first.Masks[i].Data, second.Masks[i].Data) {
			t.Errorf("mask %d (class %d) not bit-identical", i, first.Masks[i].ClassID)
		}
	}
}

func TestClassifyJitterDeterministicWithFixedSeed(t *testing.T) {
	cfg := testClassifierConfig()
	cfg.Jitter = true
	cfg.JitterSeed = 7

	run := func() *model.Segmentation {
		s := NewClassifierService(cfg)
		if err := s.Initialize(); err != nil {
			t.Fatalf("Initialize: %v", err)
		}
		seg, err := s.Classify(context.Background(), houseSceneBuffer(t))
		if err != nil {
			t.Fatalf("Classify: %v", err)
		}
		return seg
	}

	first, second := run(), run()
	if len(first.Masks) != len(second.Masks) {
		t.Fatalf("mask count differs: %d vs %d", len(first.Masks), len(second.Masks))
	}
	for i := range first.Masks {
		if !bytes.Equal(first.Masks[i].Data, second.Masks[i].Data) {
			t.Errorf("jittered mask %d not reproducible with fixed seed", i)
		}
	}
}

func TestClassifyMaskContainment(t *testing.T) {
	s := newTestClassifier(t)
	buf := houseSceneBuffer(t)

	seg, err := s.Classify(context.Background(), buf)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	area := buf.Width * buf.Height
	for _, m := range seg.Masks {
		if count := m.Count(); count > area {
			t.Errorf("class %d mask covers %d pixels, image has %d", m.ClassID, count, area)
		}
		if m.Confidence < 0 || m.Confidence > 1 {
			t.Errorf("class %d confidence out of range: %f", m.ClassID, m.Confidence)
		}
		// 数据中只允许0或本分类ID
		for _, v := range m.Data {
			if v != 0 && int(v) != m.ClassID {
				t.Fatalf("class %d mask contains foreign value %d", m.ClassID, v)
			}
		}
	}
}

func TestClassifyUniformGrayHasNoSkyOrLandscape(t *testing.T) {
	s := newTestClassifier(t)
	buf, err := model.NewPixelBuffer(50, 50)
	if err != nil {
		t.Fatalf("NewPixelBuffer: %v", err)
	}
	for i := 0; i < 50*50; i++ {
		buf.Pix[i*4] = 0x60
		buf.Pix[i*4+1] = 0x60
		buf.Pix[i*4+2] = 0x60
		buf.Pix[i*4+3] = 255
	}

	seg, err := s.Classify(context.Background(), buf)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if m := findMask(seg, model.ClassSky); m != nil {
		t.Error("uniform gray image should not detect sky")
	}
	if m := findMask(seg, model.ClassLandscape); m != nil {
		t.Error("uniform gray image should not detect landscape")
	}
}
