package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/Sandss8/Fito-bot/pkg/models"
)

const timeLayout = "2006-01-02 15:04:05"

// UpsertProfile сохраняет профиль: вставка для нового пользователя,
// обновление изменяемых полей для существующего. Дата регистрации
// выставляется один раз, дата обновления — при каждом вызове.
func (db *DB) UpsertProfile(p *models.Profile) error {
	now := time.Now()

	var exists int
	err := db.conn.QueryRow("SELECT 1 FROM users WHERE user_id = ?", p.UserID).Scan(&exists)
	switch {
	case err == sql.ErrNoRows:
		if p.RegisteredAt.IsZero() {
			p.RegisteredAt = now
		}
		p.UpdatedAt = now
		_, err = db.conn.Exec(`
			INSERT INTO users (
				user_id, username, first_name, last_name, gender, age,
				height, weight, activity_level, bmr, daily_calories,
				registration_date, last_update_date
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.UserID, nullString(p.Username), p.FirstName, nullString(p.LastName),
			p.Gender, p.Age, p.Height, p.Weight, p.ActivityLevel,
			p.BMR, p.DailyCalories,
			p.RegisteredAt.Format(timeLayout), p.UpdatedAt.Format(timeLayout))
		if err != nil {
			return fmt.Errorf("не удалось вставить пользователя %d: %w", p.UserID, err)
		}
		log.Printf("Пользователь %d зарегистрирован", p.UserID)
		return nil
	case err != nil:
		return fmt.Errorf("не удалось проверить пользователя %d: %w", p.UserID, err)
	}

	p.UpdatedAt = now
	_, err = db.conn.Exec(`
		UPDATE users SET
			username = ?, first_name = ?, last_name = ?,
			gender = ?, age = ?, height = ?, weight = ?, activity_level = ?,
			bmr = ?, daily_calories = ?, last_update_date = ?
		WHERE user_id = ?`,
		nullString(p.Username), p.FirstName, nullString(p.LastName),
		p.Gender, p.Age, p.Height, p.Weight, p.ActivityLevel,
		p.BMR, p.DailyCalories, p.UpdatedAt.Format(timeLayout), p.UserID)
	if err != nil {
		return fmt.Errorf("не удалось обновить пользователя %d: %w", p.UserID, err)
	}
	log.Printf("Пользователь %d обновлён", p.UserID)
	return nil
}

// GetProfile возвращает профиль или models.ErrProfileNotFound.
func (db *DB) GetProfile(userID int64) (*models.Profile, error) {
	row := db.conn.QueryRow(`
		SELECT user_id, username, first_name, last_name, gender, age,
		       height, weight, activity_level, bmr, daily_calories,
		       registration_date, last_update_date
		FROM users WHERE user_id = ?`, userID)

	var (
		p                   models.Profile
		username, lastName  sql.NullString
		registered, updated string
		height              float64
	)
	err := row.Scan(&p.UserID, &username, &p.FirstName, &lastName,
		&p.Gender, &p.Age, &height, &p.Weight, &p.ActivityLevel,
		&p.BMR, &p.DailyCalories, &registered, &updated)
	if err == sql.ErrNoRows {
		return nil, models.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать пользователя %d: %w", userID, err)
	}

	p.Username = username.String
	p.LastName = lastName.String
	p.Height = int(height)
	p.RegisteredAt, _ = time.ParseInLocation(timeLayout, registered, time.Local)
	p.UpdatedAt, _ = time.ParseInLocation(timeLayout, updated, time.Local)
	return &p, nil
}

// AppendMeal добавляет запись о блюде. Записи никогда не изменяются.
func (db *DB) AppendMeal(userID int64, meal *models.MealRecord) error {
	if meal.EatenAt.IsZero() {
		meal.EatenAt = time.Now()
	}
	_, err := db.conn.Exec(`
		INSERT INTO meals (user_id, food_name, calories, protein, fat, carbs, weight, date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, meal.FoodName, meal.Calories,
		nullFloat(meal.Protein), nullFloat(meal.Fat), nullFloat(meal.Carbs),
		meal.Mass, meal.EatenAt.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("не удалось сохранить блюдо для %d: %w", userID, err)
	}
	log.Printf("Блюдо для %d сохранено", userID)
	return nil
}

// DailyTotals суммирует нутриенты за календарный день.
// Отсутствующие макронутриенты считаются за ноль в сумме.
func (db *DB) DailyTotals(userID int64, day time.Time) (*models.DailyTotals, error) {
	var t models.DailyTotals
	err := db.conn.QueryRow(`
		SELECT COALESCE(SUM(calories), 0),
		       COALESCE(SUM(protein), 0),
		       COALESCE(SUM(fat), 0),
		       COALESCE(SUM(carbs), 0)
		FROM meals
		WHERE user_id = ? AND date LIKE ?`,
		userID, day.Format("2006-01-02")+"%").
		Scan(&t.Calories, &t.Protein, &t.Fat, &t.Carbs)
	if err != nil {
		return nil, fmt.Errorf("не удалось посчитать итоги для %d: %w", userID, err)
	}
	return &t, nil
}

// ListMeals возвращает последние записи, новые первыми.
func (db *DB) ListMeals(userID int64, limit int) ([]models.MealRecord, error) {
	rows, err := db.conn.Query(`
		SELECT food_name, calories, protein, fat, carbs, weight, date
		FROM meals
		WHERE user_id = ?
		ORDER BY date DESC, meal_id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать блюда для %d: %w", userID, err)
	}
	defer rows.Close()

	var meals []models.MealRecord
	for rows.Next() {
		var (
			m                   models.MealRecord
			protein, fat, carbs sql.NullFloat64
			date                string
		)
		if err := rows.Scan(&m.FoodName, &m.Calories, &protein, &fat, &carbs, &m.Mass, &date); err != nil {
			return nil, fmt.Errorf("не удалось разобрать строку блюда: %w", err)
		}
		m.Protein = floatPtr(protein)
		m.Fat = floatPtr(fat)
		m.Carbs = floatPtr(carbs)
		m.EatenAt, _ = time.ParseInLocation(timeLayout, date, time.Local)
		meals = append(meals, m)
	}
	return meals, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
