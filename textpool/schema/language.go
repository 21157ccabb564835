package schema

// Language selects the analyzer of an IndexField.
type Language string

const (
	Arabic              Language = "ARABIC"
	Armenian            Language = "ARMENIAN"
	Basque              Language = "BASQUE"
	Bengali             Language = "BENGALI"
	BrazilianPortuguese Language = "BRAZILIAN_PORTUGUESE"
	Bulgarian           Language = "BULGARIAN"
	Catalan             Language = "CATALAN"
	Chinese             Language = "CHINESE"
	Czech               Language = "CZECH"
	Danish              Language = "DANISH"
	Dutch               Language = "DUTCH"
	English             Language = "ENGLISH"
	Estonian            Language = "ESTONIAN"
	Finnish             Language = "FINNISH"
	French              Language = "FRENCH"
	Galician            Language = "GALICIAN"
	German              Language = "GERMAN"
	Greek               Language = "GREEK"
	Hindi               Language = "HINDI"
	Hungarian           Language = "HUNGARIAN"
	Indonesian          Language = "INDONESIAN"
	Irish               Language = "IRISH"
	Italian             Language = "ITALIAN"
	Japanese            Language = "JAPANESE"
	Korean              Language = "KOREAN"
	Latvian             Language = "LATVIAN"
	Lithuanian          Language = "LITHUANIAN"
	Nepali              Language = "NEPALI"
	Norwegian           Language = "NORWEGIAN"
	Persian             Language = "PERSIAN"
	Polish              Language = "POLISH"
	Portuguese          Language = "PORTUGUESE"
	Romanian            Language = "ROMANIAN"
	Russian             Language = "RUSSIAN"
	Serbian             Language = "SERBIAN"
	SoraniKurdish       Language = "SORANI_KURDISH"
	Spanish             Language = "SPANISH"
	Swedish             Language = "SWEDISH"
	Tamil               Language = "TAMIL"
	Telugu              Language = "TELUGU"
	Thai                Language = "THAI"
	Turkish             Language = "TURKISH"
	Ukrainian           Language = "UKRAINIAN"
)

// Languages lists every supported analyzer language in declaration order.
var Languages = []Language{
	Arabic, Armenian, Basque, Bengali, BrazilianPortuguese, Bulgarian, Catalan,
	Chinese, Czech, Danish, Dutch, English, Estonian, Finnish, French, Galician,
	German, Greek, Hindi, Hungarian, Indonesian, Irish, Italian, Japanese, Korean,
	Latvian, Lithuanian, Nepali, Norwegian, Persian, Polish, Portuguese, Romanian,
	Russian, Serbian, SoraniKurdish, Spanish, Swedish, Tamil, Telugu, Thai,
	Turkish, Ukrainian,
}

var languageSet = func() map[Language]bool {
	m := make(map[Language]bool, len(Languages))
	for _, l := range Languages {
		m[l] = true
	}
	return m
}()

// Valid reports whether l is a known language.
func (l Language) Valid() bool {
	return languageSet[l]
}
