package model

// SemanticClass 语义分类定义
type SemanticClass struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	LegendColor string `json:"legend_color"`
	// Priority 掩码叠加优先级，数值大的分类覆盖数值小的
	Priority int `json:"-"`
}

// 分类ID常量，id 0 保留为背景，不可选
const (
	ClassBackground = 0
	ClassWalls      = 1
	ClassRoof       = 2
	ClassWindows    = 3
	ClassDoors      = 4
	ClassTrim       = 5
	ClassLandscape  = 6
	ClassSky        = 7
)

// classes 进程级静态分类表
var classes = []SemanticClass{
	{ID: ClassWalls, Name: "walls", DisplayName: "墙面", LegendColor: "#D9A066", Priority: 3},
	{ID: ClassRoof, Name: "roof", DisplayName: "屋顶", LegendColor: "#8B4513", Priority: 4},
	{ID: ClassWindows, Name: "windows", DisplayName: "窗户", LegendColor: "#87CEFA", Priority: 5},
	{ID: ClassDoors, Name: "doors", DisplayName: "门", LegendColor: "#A0522D", Priority: 6},
	{ID: ClassTrim, Name: "trim", DisplayName: "装饰线条", LegendColor: "#F5F5F5", Priority: 7},
	{ID: ClassLandscape, Name: "landscape", DisplayName: "园林绿化", LegendColor: "#228B22", Priority: 2},
	{ID: ClassSky, Name: "sky", DisplayName: "天空", LegendColor: "#87CEEB", Priority: 1},
}

// Classes 返回可选分类表的副本
func Classes() []SemanticClass {
	out := make([]SemanticClass, len(classes))
	copy(out, classes)
	return out
}

// ClassByID 按ID查找分类
func ClassByID(id int) (SemanticClass, bool) {
	for _, c := range classes {
		if c.ID == id {
			return c, true
		}
	}
	return SemanticClass{}, false
}
