package repository

import (
	"shop_concierge/internal/models"

	"gorm.io/gorm"
)

type ExpenseRepository interface {
	Create(expense *models.Expense) error
	GetByOrderID(orderID uint) ([]models.Expense, error)
}

type expenseRepository struct {
	db *gorm.DB
}

func NewExpenseRepository(db *gorm.DB) ExpenseRepository {
	return &expenseRepository{db: db}
}

func (r *expenseRepository) Create(expense *models.Expense) error {
	return r.db.Create(expense).Error
}

func (r *expenseRepository) GetByOrderID(orderID uint) ([]models.Expense, error) {
	var expenses []models.Expense
	err := r.db.Where("order_id = ?", orderID).Order("id ASC").Find(&expenses).Error
	return expenses, err
}
