// Package model содержит доменные сущности сервиса витрины вывесок.
package model

import "time"

// PaymentStatus описывает статус оплаты заказа.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// IsTerminal сообщает, что из статуса больше нет переходов.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed
}

// CustomerAddress содержит контактные и почтовые данные покупателя.
type CustomerAddress struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Street   string `json:"street"`
	City     string `json:"city"`
	State    string `json:"state"`
	ZipCode  string `json:"zipCode"`
}

// Order описывает заказ вывески. ID совпадает с идентификатором транзакции в платёжном шлюзе.
type Order struct {
	ID               string
	Category         string
	Material         string
	Size             string
	TotalSqInch      float64
	FrontendPrice    float64
	ServerPrice      float64
	PriceValid       bool
	PaymentStatus    PaymentStatus
	CustomerAddress  CustomerAddress
	UserIP           string
	LightingIncluded bool
	FittingIncluded  bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
