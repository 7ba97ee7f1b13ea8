// Package pricing рассчитывает стоимость вывески по конфигурации заказа.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnknownMaterial возвращается, если материал не относится ни к одной из известных категорий.
var ErrUnknownMaterial = errors.New("unknown material")

const (
	smallAreaLimit  = 100.0
	mediumAreaLimit = 225.0

	fittingSurcharge = 500.0

	metalLightingFactor   = 1.6
	defaultLightingFactor = 2.0
)

type category struct {
	keywords []string
	rates    [3]float64
	metal    bool
}

// Порядок важен: первая совпавшая категория выигрывает.
var categories = []category{
	{keywords: []string{"acrylic", "wood"}, rates: [3]float64{13.0, 11.5, 10.0}},
	{keywords: []string{"acp"}, rates: [3]float64{14.0, 12.0, 10.0}},
	{keywords: []string{"ss", "ms", "metal"}, rates: [3]float64{30.0, 25.0, 20.0}, metal: true},
}

func classify(material string) (category, bool) {
	mat := strings.ToLower(material)
	for _, c := range categories {
		for _, kw := range c.keywords {
			if strings.Contains(mat, kw) {
				return c, true
			}
		}
	}
	return category{}, false
}

func (c category) baseRate(totalSqInch float64) float64 {
	switch {
	case totalSqInch <= smallAreaLimit:
		return c.rates[0]
	case totalSqInch <= mediumAreaLimit:
		return c.rates[1]
	default:
		return c.rates[2]
	}
}

// CalculatePrice возвращает стоимость вывески из материала material площадью totalSqInch квадратных дюймов.
// Подсветка умножает цену (1.6 для металла, 2.0 для остальных), монтаж добавляет фиксированную надбавку.
func CalculatePrice(material string, totalSqInch float64, lightingIncluded, fittingIncluded bool) (float64, error) {
	c, ok := classify(material)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownMaterial, material)
	}

	price := c.baseRate(totalSqInch) * totalSqInch

	if lightingIncluded {
		if c.metal {
			price *= metalLightingFactor
		} else {
			price *= defaultLightingFactor
		}
	}

	if fittingIncluded {
		price += fittingSurcharge
	}

	return price, nil
}

// IsPriceValid сообщает, совпадает ли цена клиента с серверной с точностью до единицы валюты.
// Граница исключается: разница ровно 1.0 считается расхождением.
func IsPriceValid(serverPrice, frontendPrice float64) bool {
	return math.Abs(serverPrice-frontendPrice) < 1.0
}
