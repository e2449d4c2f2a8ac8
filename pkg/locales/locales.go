package locales

import (
	_ "embed"
	"encoding/json"
	"log"
	"sync"
)

//go:embed locales.json
var localesJSON []byte

// Locales содержит все текстовые строки из locales.json
type Locales struct {
	Menu         Menu         `json:"menu"`
	Registration Registration `json:"registration"`
	Food         Food         `json:"food"`
	Profile      Profile      `json:"profile"`
	Totals       Totals       `json:"totals"`
	Errors       Errors       `json:"errors"`
}

type Menu struct {
	Greeting   string `json:"greeting"`
	Text       string `json:"text"`
	UseButtons string `json:"use_buttons"`
	Buttons    struct {
		Register string `json:"register"`
		Track    string `json:"track"`
		Profile  string `json:"profile"`
		Totals   string `json:"totals"`
	} `json:"buttons"`
}

type Prompt struct {
	Prompt  string `json:"prompt"`
	Invalid string `json:"invalid"`
}

type Registration struct {
	Intro      string `json:"intro"`
	Gender     Prompt `json:"gender"`
	Age        Prompt `json:"age"`
	Height     Prompt `json:"height"`
	Weight     Prompt `json:"weight"`
	Activity   Prompt `json:"activity"`
	Done       string `json:"done"`
	Results    string `json:"results"`
	SaveFailed string `json:"save_failed"`
}

type Food struct {
	AskName     string `json:"ask_name"`
	Found       string `json:"found"`
	NotFound    string `json:"not_found"`
	Unavailable string `json:"unavailable"`
	InvalidMass string `json:"invalid_mass"`
	Result      string `json:"result"`
	Saved       string `json:"saved"`
	NoData      string `json:"no_data"`
}

type Profile struct {
	Text          string `json:"text"`
	NotRegistered string `json:"not_registered"`
}

type Totals struct {
	Header      string `json:"header"`
	MealsHeader string `json:"meals_header"`
	MealLine    string `json:"meal_line"`
	Empty       string `json:"empty"`
}

type Errors struct {
	Internal string `json:"internal"`
}

var (
	once   sync.Once
	loaded Locales
)

// Get возвращает разобранные локали. Файл встроен в бинарник,
// ошибка разбора означает битую сборку.
func Get() *Locales {
	once.Do(func() {
		if err := json.Unmarshal(localesJSON, &loaded); err != nil {
			log.Fatalf("Не удалось разобрать locales.json: %v", err)
		}
	})
	return &loaded
}
