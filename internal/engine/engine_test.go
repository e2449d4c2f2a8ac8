package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/Sandss8/Fito-bot/pkg/locales"
	"github.com/Sandss8/Fito-bot/pkg/models"
)

// fakeLookup — заглушка сервиса поиска.
type fakeLookup struct {
	food    *models.FoodCandidate
	err     error
	queries []string
}

func (f *fakeLookup) SearchFood(_ context.Context, query string) (*models.FoodCandidate, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.food, nil
}

// fakeStore — хранилище профилей в памяти.
type fakeStore struct {
	profiles  map[int64]*models.Profile
	meals     map[int64][]models.MealRecord
	upserts   int
	upsertErr error
	mealErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles: make(map[int64]*models.Profile),
		meals:    make(map[int64][]models.MealRecord),
	}
}

func (f *fakeStore) UpsertProfile(p *models.Profile) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts++
	cp := *p
	if old, ok := f.profiles[p.UserID]; ok {
		cp.RegisteredAt = old.RegisteredAt
	} else {
		cp.RegisteredAt = time.Now()
	}
	cp.UpdatedAt = time.Now()
	f.profiles[p.UserID] = &cp
	return nil
}

func (f *fakeStore) GetProfile(userID int64) (*models.Profile, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return nil, models.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) AppendMeal(userID int64, meal *models.MealRecord) error {
	if f.mealErr != nil {
		return f.mealErr
	}
	f.meals[userID] = append(f.meals[userID], *meal)
	return nil
}

func (f *fakeStore) DailyTotals(userID int64, _ time.Time) (*models.DailyTotals, error) {
	var t models.DailyTotals
	for _, m := range f.meals[userID] {
		t.Calories += m.Calories
		if m.Protein != nil {
			t.Protein += *m.Protein
		}
		if m.Fat != nil {
			t.Fat += *m.Fat
		}
		if m.Carbs != nil {
			t.Carbs += *m.Carbs
		}
	}
	return &t, nil
}

func (f *fakeStore) ListMeals(userID int64, limit int) ([]models.MealRecord, error) {
	meals := f.meals[userID]
	if len(meals) > limit {
		meals = meals[:limit]
	}
	return meals, nil
}

var testUser = models.UserInfo{ID: 42, Username: "ivan", FirstName: "Иван", LastName: "Иванов"}

func send(t *testing.T, e *Engine, text string) models.Reply {
	t.Helper()
	return e.HandleMessage(context.Background(), testUser, text)
}

func hasButton(reply models.Reply, label string) bool {
	for _, row := range reply.Keyboard {
		for _, b := range row {
			if b == label {
				return true
			}
		}
	}
	return false
}

func TestRegistrationFlow(t *testing.T) {
	l := locales.Get()
	store := newFakeStore()
	e := New(store, &fakeLookup{})

	reply := send(t, e, "/start")
	if !hasButton(reply, l.Menu.Buttons.Register) {
		t.Fatalf("в меню нет кнопки регистрации: %+v", reply.Keyboard)
	}

	send(t, e, l.Menu.Buttons.Register)
	send(t, e, "м") // регистр не важен
	send(t, e, "25")
	send(t, e, "175")
	send(t, e, "70")
	reply = send(t, e, ActivityLevels[2])

	if !strings.Contains(reply.Text, l.Registration.Done) {
		t.Errorf("нет подтверждения регистрации: %q", reply.Text)
	}
	if !hasButton(reply, l.Menu.Buttons.Profile) {
		t.Errorf("после регистрации меню без кнопки профиля: %+v", reply.Keyboard)
	}

	p, err := store.GetProfile(testUser.ID)
	if err != nil {
		t.Fatalf("профиль не сохранён: %v", err)
	}

	wantBMR := 10*70.0 + 6.25*175 - 5*25 + 5
	if math.Abs(p.BMR-wantBMR) > 1e-9 {
		t.Errorf("BMR = %v, ожидалось %v", p.BMR, wantBMR)
	}
	if math.Abs(p.DailyCalories-wantBMR*1.55) > 1e-9 {
		t.Errorf("норма = %v, ожидалось %v", p.DailyCalories, wantBMR*1.55)
	}
	if p.Gender != GenderMale || p.Age != 25 || p.Height != 175 || p.Weight != 70 {
		t.Errorf("искажены данные профиля: %+v", p)
	}
	if p.Username != testUser.Username || p.FirstName != testUser.FirstName {
		t.Errorf("не сохранены данные пользователя: %+v", p)
	}
}

func TestInvalidInputKeepsState(t *testing.T) {
	l := locales.Get()
	store := newFakeStore()
	e := New(store, &fakeLookup{})

	send(t, e, "/start")
	send(t, e, l.Menu.Buttons.Register)
	send(t, e, "М")

	// возраст: мусор и выход за границы не продвигают машину
	for _, bad := range []string{"abc", "5", "200", "25.5"} {
		reply := send(t, e, bad)
		if reply.Text != l.Registration.Age.Invalid {
			t.Errorf("возраст %q: ожидался повторный запрос, получено %q", bad, reply.Text)
		}
	}

	// корректный возраст всё ещё принимается этим же состоянием
	reply := send(t, e, "25")
	if reply.Text != l.Registration.Height.Prompt {
		t.Errorf("после корректного возраста ожидался запрос роста, получено %q", reply.Text)
	}

	if len(store.profiles) != 0 {
		t.Errorf("профиль не должен сохраняться до конца регистрации")
	}
}

func TestGenderValidation(t *testing.T) {
	l := locales.Get()
	e := New(newFakeStore(), &fakeLookup{})

	send(t, e, "/start")
	send(t, e, l.Menu.Buttons.Register)

	reply := send(t, e, "X")
	if reply.Text != l.Registration.Gender.Invalid {
		t.Errorf("ожидался повторный запрос пола, получено %q", reply.Text)
	}
	if !hasButton(reply, GenderMale) || !hasButton(reply, GenderFemale) {
		t.Errorf("повторный запрос пола без кнопок: %+v", reply.Keyboard)
	}
}

func TestCommandDiscardsPartialRegistration(t *testing.T) {
	l := locales.Get()
	store := newFakeStore()
	e := New(store, &fakeLookup{})

	send(t, e, "/start")
	send(t, e, l.Menu.Buttons.Register)
	send(t, e, "Ж")
	send(t, e, "30")

	// команда посреди регистрации сбрасывает накопленное
	reply := send(t, e, "/start")
	if !hasButton(reply, l.Menu.Buttons.Register) {
		t.Fatalf("после сброса ожидалось меню: %+v", reply)
	}
	if len(store.profiles) != 0 {
		t.Errorf("частичный профиль не должен сохраняться")
	}

	// регистрация начинается заново с пола
	reply = send(t, e, l.Menu.Buttons.Register)
	if !strings.Contains(reply.Text, l.Registration.Gender.Prompt) {
		t.Errorf("ожидался запрос пола, получено %q", reply.Text)
	}
}

func TestDishTrackingRoundTrip(t *testing.T) {
	l := locales.Get()
	store := newFakeStore()
	protein := 31.0
	lookup := &fakeLookup{food: &models.FoodCandidate{
		Name:        "Куриная грудка",
		CaloriesPer: 165,
		ProteinPer:  &protein,
	}}
	e := New(store, lookup)

	send(t, e, "/start")
	send(t, e, l.Menu.Buttons.Track)
	reply := send(t, e, "курица")

	if len(lookup.queries) != 1 || lookup.queries[0] != "курица" {
		t.Fatalf("запрос к поиску не дошёл: %v", lookup.queries)
	}
	if !strings.Contains(reply.Text, "Куриная грудка") {
		t.Errorf("в ответе нет найденного продукта: %q", reply.Text)
	}

	reply = send(t, e, "150")
	if !strings.Contains(reply.Text, l.Food.Saved) {
		t.Errorf("нет подтверждения записи: %q", reply.Text)
	}

	meals := store.meals[testUser.ID]
	if len(meals) != 1 {
		t.Fatalf("ожидалась одна запись, получено %d", len(meals))
	}
	m := meals[0]
	if math.Abs(m.Calories-247.5) > 1e-9 {
		t.Errorf("калории = %v, ожидалось 247.5", m.Calories)
	}
	if m.Protein == nil || math.Abs(*m.Protein-46.5) > 1e-9 {
		t.Errorf("белки = %v, ожидалось 46.5", m.Protein)
	}
	if m.Fat != nil || m.Carbs != nil {
		t.Errorf("отсутствующие нутриенты должны остаться отсутствующими: %+v", m)
	}
	if m.Mass != 150 || m.FoodName != "Куриная грудка" {
		t.Errorf("искажена запись: %+v", m)
	}
}

func TestDishMassValidation(t *testing.T) {
	l := locales.Get()
	store := newFakeStore()
	e := New(store, &fakeLookup{food: &models.FoodCandidate{Name: "Рис", CaloriesPer: 130}})

	send(t, e, "/start")
	send(t, e, l.Menu.Buttons.Track)
	send(t, e, "рис")

	for _, bad := range []string{"abc", "-5", "0", "Inf"} {
		reply := send(t, e, bad)
		if reply.Text != l.Food.InvalidMass {
			t.Errorf("масса %q: ожидался повторный запрос, получено %q", bad, reply.Text)
		}
	}
	if len(store.meals[testUser.ID]) != 0 {
		t.Fatalf("запись не должна создаваться до корректной массы")
	}

	// десятичная запятая принимается
	send(t, e, "100,5")
	if len(store.meals[testUser.ID]) != 1 {
		t.Fatalf("корректная масса не принята")
	}
}

func TestLookupNotFoundReturnsToMenu(t *testing.T) {
	l := locales.Get()
	store := newFakeStore()
	e := New(store, &fakeLookup{err: models.ErrFoodNotFound})

	send(t, e, "/start")
	send(t, e, l.Menu.Buttons.Track)
	reply := send(t, e, "неведомое блюдо")

	if reply.Text != l.Food.NotFound {
		t.Errorf("ожидалось сообщение «не найдено», получено %q", reply.Text)
	}
	if len(store.meals[testUser.ID]) != 0 {
		t.Errorf("запись о блюде не должна создаваться")
	}

	// сессия вернулась в меню: произвольный текст даёт подсказку меню
	reply = send(t, e, "что-нибудь")
	if reply.Text != l.Menu.UseButtons {
		t.Errorf("после сбоя ожидалось меню, получено %q", reply.Text)
	}
}

func TestLookupUnavailableReturnsToMenu(t *testing.T) {
	l := locales.Get()
	store := newFakeStore()
	e := New(store, &fakeLookup{err: fmt.Errorf("timeout: %w", models.ErrLookupUnavailable)})

	send(t, e, "/start")
	send(t, e, l.Menu.Buttons.Track)
	reply := send(t, e, "борщ")

	if reply.Text != l.Food.Unavailable {
		t.Errorf("ожидалось сообщение о недоступности, получено %q", reply.Text)
	}
	if len(store.meals[testUser.ID]) != 0 {
		t.Errorf("запись о блюде не должна создаваться")
	}
}

func TestProfileSaveFailureNotSilent(t *testing.T) {
	l := locales.Get()
	store := newFakeStore()
	store.upsertErr = errors.New("диск переполнен")
	e := New(store, &fakeLookup{})

	send(t, e, "/start")
	send(t, e, l.Menu.Buttons.Register)
	send(t, e, "М")
	send(t, e, "25")
	send(t, e, "175")
	send(t, e, "70")
	reply := send(t, e, "3")

	if reply.Text != l.Registration.SaveFailed {
		t.Errorf("сбой сохранения не должен выглядеть успехом: %q", reply.Text)
	}
	if strings.Contains(reply.Text, l.Registration.Done) {
		t.Errorf("объявлен успех при сбое сохранения")
	}
}

func TestProfileView(t *testing.T) {
	l := locales.Get()
	store := newFakeStore()
	e := New(store, &fakeLookup{})

	send(t, e, "/start")
	send(t, e, l.Menu.Buttons.Register)
	send(t, e, "Ж")
	send(t, e, "31")
	send(t, e, "162")
	send(t, e, "55,5")
	send(t, e, "1")

	reply := send(t, e, l.Menu.Buttons.Profile)
	for _, want := range []string{"Ж", "31", "162", "55.5"} {
		if !strings.Contains(reply.Text, want) {
			t.Errorf("в профиле нет %q: %q", want, reply.Text)
		}
	}
}

func TestDailyTotalsView(t *testing.T) {
	l := locales.Get()
	store := newFakeStore()
	e := New(store, &fakeLookup{food: &models.FoodCandidate{Name: "Гречка", CaloriesPer: 110}})

	send(t, e, "/start")
	send(t, e, l.Menu.Buttons.Register)
	send(t, e, "М")
	send(t, e, "25")
	send(t, e, "175")
	send(t, e, "70")
	send(t, e, "2")

	reply := send(t, e, l.Menu.Buttons.Totals)
	if reply.Text != l.Totals.Empty {
		t.Errorf("без записей ожидалось пустое резюме, получено %q", reply.Text)
	}

	send(t, e, l.Menu.Buttons.Track)
	send(t, e, "гречка")
	send(t, e, "200")

	reply = send(t, e, l.Menu.Buttons.Totals)
	if !strings.Contains(reply.Text, "Гречка") {
		t.Errorf("в итогах нет записанного блюда: %q", reply.Text)
	}
}

func TestPanicRecovered(t *testing.T) {
	l := locales.Get()
	store := newFakeStore()
	// nil вместо поиска: обращение к нему внутри обработчика паникует
	e := New(store, nil)

	send(t, e, "/start")
	send(t, e, l.Menu.Buttons.Track)
	reply := send(t, e, "суп")

	if reply.Text != l.Errors.Internal {
		t.Errorf("паника должна превращаться в сообщение об ошибке, получено %q", reply.Text)
	}

	// движок жив и обрабатывает следующее сообщение того же пользователя
	reply = send(t, e, "/start")
	if !hasButton(reply, l.Menu.Buttons.Register) {
		t.Errorf("после паники движок не восстановился: %+v", reply)
	}
}

func TestUsersDoNotShareSessions(t *testing.T) {
	l := locales.Get()
	store := newFakeStore()
	e := New(store, &fakeLookup{})

	other := models.UserInfo{ID: 7, FirstName: "Пётр"}
	ctx := context.Background()

	send(t, e, "/start")
	send(t, e, l.Menu.Buttons.Register)
	send(t, e, "М")

	// второй пользователь начинает с меню, а не с чужого состояния
	reply := e.HandleMessage(ctx, other, "25")
	if reply.Text != l.Menu.UseButtons {
		t.Errorf("второй пользователь попал в чужую сессию: %q", reply.Text)
	}

	// первый продолжает с того же места
	reply = send(t, e, "25")
	if reply.Text != l.Registration.Height.Prompt {
		t.Errorf("сессия первого пользователя потеряна: %q", reply.Text)
	}
}
