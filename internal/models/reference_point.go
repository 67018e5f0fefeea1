package models

// ReferencePoint is a named geographic anchor, in practice a metro station
type ReferencePoint struct {
	ID        string   `gorm:"primaryKey;size:36" json:"id"`
	Seq       int      `gorm:"uniqueIndex" json:"-"`
	Name      string   `gorm:"not null;index" json:"name"`
	NameEn    *string  `gorm:"index" json:"name_en"`
	Location  GeoPoint `gorm:"embedded" json:"location"`
	Line      string   `json:"line"`
	LineColor string   `json:"line_color"`
}
