package model

// SegmentationResult 分割结果（API及缓存结构）
type SegmentationResult struct {
	MD5       string          `json:"md5"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Classes   []DetectedClass `json:"classes"`
	Timestamp int64           `json:"timestamp"`
}

// DetectedClass 检测到的单个分类
type DetectedClass struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	LegendColor string  `json:"legend_color"`
	Mask        string  `json:"mask"` // base64编码的PNG掩码
	Confidence  float64 `json:"confidence"`
}

// Point 多边形顶点
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PolygonSelection 手动多边形选区
type PolygonSelection struct {
	ClassID int     `json:"class_id"`
	Points  []Point `json:"points"`
}

// Selection 换色目标选区：分类ID与手动多边形可混用
type Selection struct {
	ClassIDs []int              `json:"class_ids"`
	Polygons []PolygonSelection `json:"polygons"`
}

// UploadResponse 上传响应
type UploadResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    *SegmentationResult `json:"data,omitempty"`
}

// RecolorResponse 换色响应
type RecolorResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Image      string `json:"image"` // base64编码的PNG结果
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Seq        uint64 `json:"seq,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
