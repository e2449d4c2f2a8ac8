// Package openfoodfacts предоставляет клиент поиска продуктов
// в открытой базе OpenFoodFacts.
package openfoodfacts

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sandss8/Fito-bot/pkg/models"
)

const defaultSearchURL = "https://world.openfoodfacts.org/cgi/search.pl"

// pageSize — сколько кандидатов запрашивать: берём первый с калорийностью.
const pageSize = 5

// Client — клиент поиска продуктов.
type Client struct {
	searchURL  string
	httpClient *http.Client
}

// searchResponse — ответ search.pl, только нужные поля.
type searchResponse struct {
	Products []product `json:"products"`
}

type product struct {
	ProductName string     `json:"product_name"`
	Nutriments  nutriments `json:"nutriments"`
}

// nutriments — значения на 100 г. Указатели: отсутствующее значение
// не то же самое, что ноль.
type nutriments struct {
	EnergyKcal *float64 `json:"energy-kcal_100g"`
	Proteins   *float64 `json:"proteins_100g"`
	Fat        *float64 `json:"fat_100g"`
	Carbs      *float64 `json:"carbohydrates_100g"`
}

// NewClient создаёт клиент. Пустой searchURL означает публичный API.
func NewClient(searchURL string) *Client {
	if searchURL == "" {
		searchURL = defaultSearchURL
	}
	return &Client{
		searchURL: searchURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SearchFood ищет продукт по свободному запросу и возвращает первый
// кандидат с известной калорийностью. Возвращает models.ErrFoodNotFound,
// если такого нет, и models.ErrLookupUnavailable при проблемах с сервисом.
func (c *Client) SearchFood(ctx context.Context, query string) (*models.FoodCandidate, error) {
	params := url.Values{}
	params.Set("search_terms", query)
	params.Set("search_simple", "1")
	params.Set("action", "process")
	params.Set("json", "1")
	params.Set("page_size", strconv.Itoa(pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса поиска: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("OpenFoodFacts недоступен: %v", err)
		return nil, fmt.Errorf("ошибка HTTP поиска: %w", models.ErrLookupUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("OpenFoodFacts вернул статус %d", resp.StatusCode)
		return nil, fmt.Errorf("статус %d от сервиса поиска: %w", resp.StatusCode, models.ErrLookupUnavailable)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Printf("OpenFoodFacts вернул некорректный ответ: %v", err)
		return nil, fmt.Errorf("некорректный ответ сервиса поиска: %w", models.ErrLookupUnavailable)
	}

	for _, p := range result.Products {
		if p.Nutriments.EnergyKcal == nil {
			continue
		}
		name := p.ProductName
		if name == "" {
			name = query
		}
		return &models.FoodCandidate{
			Name:        name,
			CaloriesPer: *p.Nutriments.EnergyKcal,
			ProteinPer:  p.Nutriments.Proteins,
			FatPer:      p.Nutriments.Fat,
			CarbsPer:    p.Nutriments.Carbs,
		}, nil
	}

	return nil, models.ErrFoodNotFound
}
