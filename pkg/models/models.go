package models

import (
	"errors"
	"time"
)

// State — позиция пользователя в диалоговом конечном автомате (FSM).
type State string

// Константы состояний. Машина циклична: завершение регистрации или
// подсчёта блюда возвращает пользователя в StateMenu.
const (
	StateMenu     State = "menu"
	StateGender   State = "gender"
	StateAge      State = "age"
	StateHeight   State = "height"
	StateWeight   State = "weight"
	StateActivity State = "activity"
	StateDishName State = "dish_name"
	StateDishMass State = "dish_mass"
)

// UserInfo — идентификация пользователя, приходит от транспорта.
type UserInfo struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// Session — временные данные пользователя между сообщениями.
// Поле заполняется только после успешной валидации своего состояния.
type Session struct {
	State  State
	Gender string
	Age    int
	Height int
	Weight float64
	// Activity — полная метка уровня активности из шести допустимых.
	Activity string
	// Food — найденный продукт, ждём ввода массы.
	Food *FoodCandidate
}

// Reset очищает накопленные ответы и возвращает сессию в меню.
func (s *Session) Reset() {
	*s = Session{State: StateMenu}
}

// Profile — сохранённый профиль пользователя.
type Profile struct {
	UserID        int64
	Username      string
	FirstName     string
	LastName      string
	Gender        string // "М" или "Ж"
	Age           int
	Height        int
	Weight        float64
	ActivityLevel string
	BMR           float64
	DailyCalories float64
	RegisteredAt  time.Time
	UpdatedAt     time.Time
}

// MealRecord — одна запись о съеденном блюде.
// Макронутриенты опциональны: не все источники их сообщают,
// отсутствие значения не равно нулю.
type MealRecord struct {
	FoodName string
	Calories float64
	Protein  *float64
	Fat      *float64
	Carbs    *float64
	Mass     float64
	EatenAt  time.Time
}

// FoodCandidate — продукт, найденный сервисом поиска, значения на 100 г.
type FoodCandidate struct {
	Name        string
	CaloriesPer float64
	ProteinPer  *float64
	FatPer      *float64
	CarbsPer    *float64
}

// DailyTotals — сумма нутриентов за день, нули при отсутствии записей.
type DailyTotals struct {
	Calories float64
	Protein  float64
	Fat      float64
	Carbs    float64
}

// Reply — исходящее сообщение: текст и, опционально, клавиатура
// с допустимыми ответами следующего состояния.
type Reply struct {
	Text string
	// Keyboard — ряды кнопок; nil означает «без клавиатуры».
	Keyboard [][]string
	// RemoveKeyboard — убрать предыдущую клавиатуру у пользователя.
	RemoveKeyboard bool
}

// Ошибки коллабораторов.
var (
	// ErrFoodNotFound — поиск не дал ни одного продукта с калорийностью.
	ErrFoodNotFound = errors.New("продукт не найден")
	// ErrLookupUnavailable — сервис поиска недоступен или ответил мусором.
	ErrLookupUnavailable = errors.New("сервис поиска недоступен")
	// ErrProfileNotFound — профиль для данного пользователя не сохранён.
	ErrProfileNotFound = errors.New("профиль не найден")
)
