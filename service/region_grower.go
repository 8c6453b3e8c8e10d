package service

import (
	"github.com/gurkirtheerey/colormyhouse/model"
)

// RegionGrower 负责颜色连通区域生长，用于找到大面积的均匀色块（候选墙面）
type RegionGrower struct {
	threshold float64 // 与区域种子颜色的RGB欧氏距离上限
}

func NewRegionGrower(threshold float64) *RegionGrower {
	return &RegionGrower{threshold: threshold}
}

// RegionMap 区域生长结果
type RegionMap struct {
	Width  int
	Height int
	IDs    []int32 // 每像素所属区域编号，从1开始
	Areas  []int   // 区域编号 -> 像素数，下标0空置
}

// AreaOf 像素(x,y)所属区域的面积
func (rm *RegionMap) AreaOf(x, y int) int {
	id := rm.IDs[y*rm.Width+x]
	if id <= 0 {
		return 0
	}
	return rm.Areas[id]
}

// Grow 对整幅图执行4邻接区域生长。
// 像素加入当前区域当且仅当其与区域种子颜色的欧氏距离不超过阈值。
func (rg *RegionGrower) Grow(buf *model.PixelBuffer) *RegionMap {
	w, h := buf.Width, buf.Height
	rm := &RegionMap{
		Width:  w,
		Height: h,
		IDs:    make([]int32, w*h),
		Areas:  []int{0},
	}

	limitSq := rg.threshold * rg.threshold
	stack := make([]int, 0, 1024)
	var nextID int32

	for start := 0; start < w*h; start++ {
		if rm.IDs[start] != 0 {
			continue
		}
		nextID++
		id := nextID

		// 种子颜色在区域生长过程中保持不变
		si := start * 4
		sr := float64(buf.Pix[si])
		sg := float64(buf.Pix[si+1])
		sb := float64(buf.Pix[si+2])

		area := 0
		stack = stack[:0]
		stack = append(stack, start)
		rm.IDs[start] = id

		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			area++

			x := idx % w
			y := idx / w
			neighbors := [4][2]int{{x, y - 1}, {x, y + 1}, {x - 1, y}, {x + 1, y}}
			for _, nb := range neighbors {
				nx, ny := nb[0], nb[1]
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				n := ny*w + nx
				if rm.IDs[n] != 0 {
					continue
				}
				ni := n * 4
				dr := float64(buf.Pix[ni]) - sr
				dg := float64(buf.Pix[ni+1]) - sg
				db := float64(buf.Pix[ni+2]) - sb
				if dr*dr+dg*dg+db*db > limitSq {
					continue
				}
				rm.IDs[n] = id
				stack = append(stack, n)
			}
		}
		rm.Areas = append(rm.Areas, area)
	}

	return rm
}
