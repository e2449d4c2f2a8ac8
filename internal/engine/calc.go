package engine

// Допустимые значения пола.
const (
	GenderMale   = "М"
	GenderFemale = "Ж"
)

// ActivityLevels — шесть уровней активности в порядке возрастания нагрузки.
// Полная метка хранится в профиле, цифра 1-6 принимается как короткий ввод.
var ActivityLevels = []string{
	"1. Малоподвижный образ жизни",
	"2. Лёгкие физические нагрузки, прогулки",
	"3. Тренировки 4-5 раз в неделю",
	"4. Физическая активность 5-6 раз в неделю",
	"5. Высокая активность 6-7 раз в неделю",
	"6. Профессиональный спорт (2+ тренировки в день)",
}

// activityFactors — фиксированные множители к BMR.
var activityFactors = map[string]float64{
	ActivityLevels[0]: 1.2,
	ActivityLevels[1]: 1.375,
	ActivityLevels[2]: 1.55,
	ActivityLevels[3]: 1.725,
	ActivityLevels[4]: 1.9,
	ActivityLevels[5]: 2.1,
}

// BMR — основной обмен по формуле Миффлина-Сан Жеора.
// Входные значения уже прошли валидацию, ошибок нет.
func BMR(gender string, weight float64, height, age int) float64 {
	base := 10*weight + 6.25*float64(height) - 5*float64(age)
	if gender == GenderMale {
		return base + 5
	}
	return base - 161
}

// DailyCalories — дневная норма: BMR с учётом уровня активности.
// Метка обязана быть одной из ActivityLevels.
func DailyCalories(bmr float64, activity string) float64 {
	return bmr * activityFactors[activity]
}

// ScalePer100 пересчитывает значение «на 100 г» на введённую массу.
func ScalePer100(per100, mass float64) float64 {
	return per100 * mass / 100
}

// scaleOptional — то же для опционального нутриента; отсутствие сохраняется.
func scaleOptional(per100 *float64, mass float64) *float64 {
	if per100 == nil {
		return nil
	}
	v := ScalePer100(*per100, mass)
	return &v
}
