package entity

// Dimensions — размеры изображения в пикселях.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// PreprocessResult хранит итог подготовки изображения к инференсу.
// Живёт в рамках одного запроса и нигде не сохраняется.
type PreprocessResult struct {
	Original     []byte  // исходное изображение (JPEG)
	Processed    []byte  // квадрат target×target с letterbox-полями (JPEG)
	QualityScore float64 // оценка качества снимка, 0–100
	Width        int     // ширина исходного изображения
	Height       int     // высота исходного изображения
}

// InspectionReport — итог проверки одного снимка.
type InspectionReport struct {
	InspectionID       string      // идентификатор проверки
	Defects            []Detection // итоговый список дефектов
	ProcessingTime     float64     // время обработки в секундах
	QualityScore       float64     // оценка качества снимка, 0–100
	YoloDetections     int         // сколько нашёл геометрический детектор
	GptDetections      int         // сколько нашла vision-language модель
	OriginalDimensions Dimensions  // размеры исходного изображения
}

// FinalDetections возвращает число дефектов после слияния.
func (r *InspectionReport) FinalDetections() int {
	return len(r.Defects)
}
