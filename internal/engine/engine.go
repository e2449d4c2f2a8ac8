// Package engine реализует диалоговый конечный автомат бота:
// валидацию ввода, накопление ответов в сессии и переходы между
// состояниями. Транспорт и внешние сервисы подключаются через
// узкие интерфейсы.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/Sandss8/Fito-bot/pkg/locales"
	"github.com/Sandss8/Fito-bot/pkg/models"
)

// NutritionLookup — поиск продукта по свободному запросу.
type NutritionLookup interface {
	SearchFood(ctx context.Context, query string) (*models.FoodCandidate, error)
}

// ProfileStore — долговременное хранилище профилей и дневника питания.
type ProfileStore interface {
	UpsertProfile(p *models.Profile) error
	GetProfile(userID int64) (*models.Profile, error)
	AppendMeal(userID int64, meal *models.MealRecord) error
	DailyTotals(userID int64, day time.Time) (*models.DailyTotals, error)
	ListMeals(userID int64, limit int) ([]models.MealRecord, error)
}

// Engine — диалоговый автомат. Безопасен для конкурентных вызовов:
// сессии сериализуются по пользователю внутри Store.
type Engine struct {
	sessions *Store
	profiles ProfileStore
	lookup   NutritionLookup
}

func New(profiles ProfileStore, lookup NutritionLookup) *Engine {
	return &Engine{
		sessions: NewStore(),
		profiles: profiles,
		lookup:   lookup,
	}
}

// HandleMessage — единственная точка входа: принимает текст пользователя,
// продвигает его сессию и возвращает ответ. Любая паника внутри
// обработчиков гасится здесь, чтобы следующее сообщение обработалось.
func (e *Engine) HandleMessage(ctx context.Context, user models.UserInfo, text string) (reply models.Reply) {
	sess := e.sessions.Acquire(user.ID)
	defer e.sessions.Release(user.ID)

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Паника при обработке сообщения от %d: %v\n%s", user.ID, r, debug.Stack())
			reply = models.Reply{Text: locales.Get().Errors.Internal}
		}
	}()

	text = strings.TrimSpace(text)

	// Команда посреди любого потока отбрасывает частичные ответы:
	// незавершённая регистрация никогда не попадает в хранилище.
	if strings.HasPrefix(text, "/") {
		sess.Reset()
		return e.showMenu(user, true)
	}

	switch sess.State {
	case models.StateMenu:
		return e.handleMenu(user, sess, text)
	case models.StateGender:
		return e.handleGender(sess, text)
	case models.StateAge:
		return e.handleAge(sess, text)
	case models.StateHeight:
		return e.handleHeight(sess, text)
	case models.StateWeight:
		return e.handleWeight(sess, text)
	case models.StateActivity:
		return e.handleActivity(user, sess, text)
	case models.StateDishName:
		return e.handleDishName(ctx, user, sess, text)
	case models.StateDishMass:
		return e.handleDishMass(user, sess, text)
	default:
		sess.Reset()
		return e.showMenu(user, false)
	}
}

// isRegistered — «зарегистрирован» значит «профиль существует»,
// отдельного флага нет.
func (e *Engine) isRegistered(userID int64) bool {
	_, err := e.profiles.GetProfile(userID)
	return err == nil
}

func (e *Engine) showMenu(user models.UserInfo, greet bool) models.Reply {
	l := locales.Get()
	registered := e.isRegistered(user.ID)

	text := l.Menu.Text
	if greet && !registered {
		text = fmt.Sprintf(l.Menu.Greeting, user.FirstName) + text
	}
	return models.Reply{Text: text, Keyboard: e.menuKeyboard(registered)}
}

func (e *Engine) menuKeyboard(registered bool) [][]string {
	l := locales.Get()
	if registered {
		return [][]string{
			{l.Menu.Buttons.Profile, l.Menu.Buttons.Track},
			{l.Menu.Buttons.Totals},
		}
	}
	return [][]string{{l.Menu.Buttons.Register, l.Menu.Buttons.Track}}
}

func (e *Engine) handleMenu(user models.UserInfo, sess *models.Session, text string) models.Reply {
	l := locales.Get()
	registered := e.isRegistered(user.ID)

	switch {
	case text == l.Menu.Buttons.Register && !registered:
		sess.Reset()
		sess.State = models.StateGender
		return models.Reply{
			Text:     l.Registration.Intro + "\n\n" + l.Registration.Gender.Prompt,
			Keyboard: genderKeyboard(),
		}
	case text == l.Menu.Buttons.Track:
		sess.State = models.StateDishName
		return models.Reply{Text: l.Food.AskName, RemoveKeyboard: true}
	case text == l.Menu.Buttons.Profile:
		return e.showProfile(user)
	case text == l.Menu.Buttons.Totals && registered:
		return e.showDailyTotals(user)
	default:
		return models.Reply{Text: l.Menu.UseButtons, Keyboard: e.menuKeyboard(registered)}
	}
}

func (e *Engine) showProfile(user models.UserInfo) models.Reply {
	l := locales.Get()

	p, err := e.profiles.GetProfile(user.ID)
	if errors.Is(err, models.ErrProfileNotFound) {
		return models.Reply{Text: l.Profile.NotRegistered, Keyboard: e.menuKeyboard(false)}
	}
	if err != nil {
		log.Printf("Ошибка чтения профиля %d: %v", user.ID, err)
		return models.Reply{Text: l.Errors.Internal, Keyboard: e.menuKeyboard(false)}
	}

	text := fmt.Sprintf(l.Profile.Text,
		p.Gender, p.Age, p.Height, p.Weight,
		activityTitle(p.ActivityLevel), p.BMR, p.DailyCalories,
		p.RegisteredAt.Format("2006-01-02 15:04:05"))
	return models.Reply{Text: text, Keyboard: e.menuKeyboard(true)}
}

func (e *Engine) showDailyTotals(user models.UserInfo) models.Reply {
	l := locales.Get()

	totals, err := e.profiles.DailyTotals(user.ID, time.Now())
	if err != nil {
		log.Printf("Ошибка подсчёта итогов для %d: %v", user.ID, err)
		return models.Reply{Text: l.Errors.Internal, Keyboard: e.menuKeyboard(true)}
	}

	meals, err := e.profiles.ListMeals(user.ID, 5)
	if err != nil {
		log.Printf("Ошибка чтения дневника для %d: %v", user.ID, err)
		return models.Reply{Text: l.Errors.Internal, Keyboard: e.menuKeyboard(true)}
	}

	if len(meals) == 0 && totals.Calories == 0 {
		return models.Reply{Text: l.Totals.Empty, Keyboard: e.menuKeyboard(true)}
	}

	var norm float64
	if p, err := e.profiles.GetProfile(user.ID); err == nil {
		norm = p.DailyCalories
	}

	lines := []string{fmt.Sprintf(l.Totals.Header,
		totals.Calories, norm, totals.Protein, totals.Fat, totals.Carbs)}
	if len(meals) > 0 {
		lines = append(lines, "", l.Totals.MealsHeader)
		for _, m := range meals {
			lines = append(lines, fmt.Sprintf(l.Totals.MealLine, m.FoodName, m.Calories, m.Mass))
		}
	}
	return models.Reply{Text: strings.Join(lines, "\n"), Keyboard: e.menuKeyboard(true)}
}

// --- Регистрация ---

func genderKeyboard() [][]string {
	return [][]string{{GenderMale, GenderFemale}}
}

func activityKeyboard() [][]string {
	return [][]string{
		{ActivityLevels[0]},
		{ActivityLevels[1], ActivityLevels[2]},
		{ActivityLevels[3], ActivityLevels[4]},
		{ActivityLevels[5]},
	}
}

func (e *Engine) handleGender(sess *models.Session, text string) models.Reply {
	l := locales.Get()

	gender := strings.ToUpper(text)
	if gender != GenderMale && gender != GenderFemale {
		return models.Reply{Text: l.Registration.Gender.Invalid, Keyboard: genderKeyboard()}
	}

	sess.Gender = gender
	sess.State = models.StateAge
	return models.Reply{Text: l.Registration.Age.Prompt, RemoveKeyboard: true}
}

func (e *Engine) handleAge(sess *models.Session, text string) models.Reply {
	l := locales.Get()

	age, err := strconv.Atoi(text)
	if err != nil || age < 10 || age > 120 {
		return models.Reply{Text: l.Registration.Age.Invalid}
	}

	sess.Age = age
	sess.State = models.StateHeight
	return models.Reply{Text: l.Registration.Height.Prompt}
}

func (e *Engine) handleHeight(sess *models.Session, text string) models.Reply {
	l := locales.Get()

	height, err := strconv.Atoi(text)
	if err != nil || height < 100 || height > 250 {
		return models.Reply{Text: l.Registration.Height.Invalid}
	}

	sess.Height = height
	sess.State = models.StateWeight
	return models.Reply{Text: l.Registration.Weight.Prompt}
}

func (e *Engine) handleWeight(sess *models.Session, text string) models.Reply {
	l := locales.Get()

	weight, err := parseDecimal(text)
	if err != nil || weight < 30 || weight > 300 {
		return models.Reply{Text: l.Registration.Weight.Invalid}
	}

	sess.Weight = weight
	sess.State = models.StateActivity
	return models.Reply{Text: l.Registration.Activity.Prompt, Keyboard: activityKeyboard()}
}

func (e *Engine) handleActivity(user models.UserInfo, sess *models.Session, text string) models.Reply {
	l := locales.Get()

	activity, ok := matchActivity(text)
	if !ok {
		return models.Reply{Text: l.Registration.Activity.Invalid, Keyboard: activityKeyboard()}
	}
	sess.Activity = activity

	bmr := BMR(sess.Gender, sess.Weight, sess.Height, sess.Age)
	daily := DailyCalories(bmr, activity)

	profile := &models.Profile{
		UserID:        user.ID,
		Username:      user.Username,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		Gender:        sess.Gender,
		Age:           sess.Age,
		Height:        sess.Height,
		Weight:        sess.Weight,
		ActivityLevel: activity,
		BMR:           bmr,
		DailyCalories: daily,
	}
	if err := e.profiles.UpsertProfile(profile); err != nil {
		// Сохранение не удалось — профиля нет, успеха не объявляем.
		log.Printf("Ошибка сохранения профиля %d: %v", user.ID, err)
		sess.Reset()
		return models.Reply{Text: l.Registration.SaveFailed, Keyboard: e.menuKeyboard(false)}
	}

	sess.Reset()
	text = l.Registration.Done + "\n\n" +
		fmt.Sprintf(l.Registration.Results, bmr, daily) + "\n\n" + l.Menu.Text
	return models.Reply{Text: text, Keyboard: e.menuKeyboard(true)}
}

// matchActivity принимает полную метку уровня или цифру 1-6.
func matchActivity(text string) (string, bool) {
	for _, level := range ActivityLevels {
		if text == level {
			return level, true
		}
	}
	if n, err := strconv.Atoi(text); err == nil && n >= 1 && n <= len(ActivityLevels) {
		return ActivityLevels[n-1], true
	}
	return "", false
}

// --- Подсчёт калорий блюда ---

func (e *Engine) handleDishName(ctx context.Context, user models.UserInfo, sess *models.Session, text string) models.Reply {
	l := locales.Get()

	if text == "" {
		return models.Reply{Text: l.Food.AskName}
	}

	food, err := e.lookup.SearchFood(ctx, text)
	if err != nil {
		// Не найдено и недоступно обрабатываются одинаково:
		// поток прерывается, пользователь возвращается в меню.
		sess.Reset()
		if errors.Is(err, models.ErrFoodNotFound) {
			return models.Reply{Text: l.Food.NotFound, Keyboard: e.menuKeyboard(e.isRegistered(user.ID))}
		}
		log.Printf("Ошибка поиска продукта: %v", err)
		return models.Reply{Text: l.Food.Unavailable, Keyboard: e.menuKeyboard(e.isRegistered(user.ID))}
	}

	sess.Food = food
	sess.State = models.StateDishMass
	return models.Reply{
		Text: fmt.Sprintf(l.Food.Found,
			food.Name, food.CaloriesPer,
			gramsOrNoData(food.ProteinPer),
			gramsOrNoData(food.FatPer),
			gramsOrNoData(food.CarbsPer)),
	}
}

func (e *Engine) handleDishMass(user models.UserInfo, sess *models.Session, text string) models.Reply {
	l := locales.Get()

	mass, err := parseDecimal(text)
	if err != nil || mass <= 0 || math.IsInf(mass, 0) {
		return models.Reply{Text: l.Food.InvalidMass}
	}

	food := sess.Food
	meal := &models.MealRecord{
		FoodName: food.Name,
		Calories: ScalePer100(food.CaloriesPer, mass),
		Protein:  scaleOptional(food.ProteinPer, mass),
		Fat:      scaleOptional(food.FatPer, mass),
		Carbs:    scaleOptional(food.CarbsPer, mass),
		Mass:     mass,
	}
	if err := e.profiles.AppendMeal(user.ID, meal); err != nil {
		log.Printf("Ошибка сохранения блюда для %d: %v", user.ID, err)
		sess.Reset()
		return models.Reply{Text: l.Errors.Internal, Keyboard: e.menuKeyboard(e.isRegistered(user.ID))}
	}

	sess.Reset()
	text = fmt.Sprintf(l.Food.Result,
		mass, meal.Calories,
		gramsOrNoData(meal.Protein),
		gramsOrNoData(meal.Fat),
		gramsOrNoData(meal.Carbs)) +
		"\n\n" + l.Food.Saved
	return models.Reply{Text: text, Keyboard: e.menuKeyboard(e.isRegistered(user.ID))}
}

// --- Вспомогательные функции ---

// parseDecimal разбирает число с точкой или запятой.
func parseDecimal(text string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", "."), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}

func gramsOrNoData(v *float64) string {
	if v == nil {
		return locales.Get().Food.NoData
	}
	return fmt.Sprintf("%.1f г", *v)
}

// activityTitle убирает номер из метки уровня для показа в профиле.
func activityTitle(label string) string {
	if i := strings.Index(label, ". "); i >= 0 {
		return label[i+2:]
	}
	return label
}
