package service

import (
	"testing"
)

func TestRegionGrowerUniformImage(t *testing.T) {
	rg := NewRegionGrower(30)
	buf := uniformBuffer(t, 20, 20, 100, 100, 100)

	rm := rg.Grow(buf)
	if got := rm.AreaOf(0, 0); got != 400 {
		t.Errorf("uniform image should form one region of 400 pixels, got %d", got)
	}
	if rm.AreaOf(19, 19) != rm.AreaOf(0, 0) {
		t.Error("all pixels should belong to the same region")
	}
}

func TestRegionGrowerSplitsDistinctColors(t *testing.T) {
	rg := NewRegionGrower(30)
	buf := uniformBuffer(t, 10, 10, 200, 0, 0)
	// 下半改成蓝色，与红色种子的距离远超阈值
	for y := 5; y < 10; y++ {
		for x := 0; x < 10; x++ {
			buf.SetRGBA(x, y, 0, 0, 200, 255)
		}
	}

	rm := rg.Grow(buf)
	if rm.IDs[0] == rm.IDs[9*10] {
		t.Error("red and blue halves should be different regions")
	}
	if rm.AreaOf(0, 0) != 50 || rm.AreaOf(0, 9) != 50 {
		t.Errorf("each half should cover 50 pixels, got %d and %d", rm.AreaOf(0, 0), rm.AreaOf(0, 9))
	}
}

func TestEdgeDetectorVerticalLine(t *testing.T) {
	ed := NewEdgeDetector(50)
	buf := uniformBuffer(t, 20, 20, 0, 0, 0)
	// 中间一条白色竖线
	for y := 0; y < 20; y++ {
		buf.SetRGBA(10, y, 255, 255, 255, 255)
	}

	em := ed.Detect(buf)
	// 宽度为1的线条在其两侧列产生梯度
	if !em.IsEdge(9, 10) || !em.IsEdge(11, 10) {
		t.Error("vertical line should produce edges on flanking columns")
	}
	if !em.Vertical[10*20+9] {
		t.Error("line edge should be flagged as vertical")
	}
	if em.IsEdge(2, 10) {
		t.Error("flat area should not be an edge")
	}
	if !em.HasVerticalEdgeNear(9, 5, 3) {
		t.Error("vertical edge should be found in the same column")
	}
	if em.HasEdgeNear(2, 2, 5) {
		t.Error("no edge expected within radius 5 of (2,2)")
	}
}

func TestBrightnessAnalyzerKnownValues(t *testing.T) {
	ba := NewBrightnessAnalyzer()

	cases := []struct {
		r, g, b uint8
		want    float64
	}{
		{0, 0, 0, 0},
		{255, 255, 255, 1},
		{255, 0, 0, 0.299},
		{0, 255, 0, 0.587},
		{0, 0, 255, 0.114},
	}
	for _, c := range cases {
		buf := uniformBuffer(t, 2, 2, c.r, c.g, c.b)
		bm := ba.Analyze(buf)
		got := bm.At(1, 1)
		if diff := got - c.want; diff > 0.001 || diff < -0.001 {
			t.Errorf("luma(%d,%d,%d): got %.4f, want %.4f", c.r, c.g, c.b, got, c.want)
		}
	}
}
