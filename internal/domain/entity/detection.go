package entity

// Источник детекции.
const (
	SourceYOLO     = "yolo"     // геометрический детектор (YOLOv8)
	SourceGPT      = "gpt"      // vision-language модель
	SourceEnsemble = "ensemble" // результат слияния двух детекторов
)

// DefectClasses — фиксированный набор из 12 классов дефектов обшивки.
var DefectClasses = []string{
	"damaged_rivet",
	"missing_rivet",
	"filiform_corrosion",
	"missing_panel",
	"paint_detachment",
	"scratch",
	"composite_damage",
	"random_damage",
	"burn_mark",
	"scorch_mark",
	"metal_fatigue",
	"crack",
}

// IsDefectClass проверяет, что имя класса входит в известный набор.
func IsDefectClass(name string) bool {
	for _, c := range DefectClasses {
		if c == name {
			return true
		}
	}
	return false
}

// BBox — прямоугольник дефекта в пиксельных координатах исходного изображения.
type BBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area возвращает площадь прямоугольника в пикселях.
func (b BBox) Area() int {
	return b.Width * b.Height
}

// Detection — единица обмена между детекторами и агрегатором.
type Detection struct {
	Class       string  `json:"class"`
	Confidence  float64 `json:"confidence"`
	BBox        BBox    `json:"bbox"`
	Source      string  `json:"source,omitempty"`
	Description string  `json:"description,omitempty"`
}

// Validate проверяет, что детекция соответствует контракту обмена.
func (d Detection) Validate() error {
	if d.Class == "" {
		return wrapAggregation("detection class is empty")
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return wrapAggregation("detection confidence is out of [0,1]")
	}
	if d.BBox.Width < 0 || d.BBox.Height < 0 {
		return wrapAggregation("detection bbox has negative size")
	}
	return nil
}
