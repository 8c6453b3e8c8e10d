package model

// ClassMask 单个分类的像素掩码。
// Data中每个元素为0（未命中）或所属分类的ID，便于叠加时直接重建组合掩码。
type ClassMask struct {
	ClassID    int
	Width      int
	Height     int
	Data       []uint8
	Confidence float64 // 命中像素占全图比例，范围[0,1]
}

// NewClassMask 创建空掩码
func NewClassMask(classID, width, height int) *ClassMask {
	return &ClassMask{
		ClassID: classID,
		Width:   width,
		Height:  height,
		Data:    make([]uint8, width*height),
	}
}

// Count 命中像素数
func (m *ClassMask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v != 0 {
			n++
		}
	}
	return n
}

// UpdateConfidence 按命中比例重算置信度
func (m *ClassMask) UpdateConfidence() {
	total := m.Width * m.Height
	if total == 0 {
		m.Confidence = 0
		return
	}
	m.Confidence = float64(m.Count()) / float64(total)
}

// CombinedMask 按用户选择叠加后的组合掩码，0表示未选中
type CombinedMask struct {
	Width  int
	Height int
	Data   []uint8
}

// NewCombinedMask 创建空组合掩码
func NewCombinedMask(width, height int) *CombinedMask {
	return &CombinedMask{
		Width:  width,
		Height: height,
		Data:   make([]uint8, width*height),
	}
}

// Selected 像素(x,y)是否被选中
func (m *CombinedMask) Selected(x, y int) bool {
	return m.Data[y*m.Width+x] != 0
}

// Segmentation 一次分类运行的输出
type Segmentation struct {
	Width   int
	Height  int
	Masks   []*ClassMask
	Classes []SemanticClass
}
