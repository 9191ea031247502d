package services

import (
	"errors"
	"shop_concierge/internal/models"
	"shop_concierge/internal/repository"

	"gorm.io/gorm"
)

type ProductService interface {
	CreateProduct(product *models.Product) error
	GetProductByID(id uint) (*models.Product, error)
	GetActiveProducts() ([]models.Product, error)
	GetAllProducts() ([]models.Product, error)
	UpdateProduct(product *models.Product) error
	DeleteProduct(id uint) error
}

type productService struct {
	productRepo repository.ProductRepository
}

func NewProductService(productRepo repository.ProductRepository) ProductService {
	return &productService{productRepo: productRepo}
}

func (s *productService) CreateProduct(product *models.Product) error {
	if product.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if product.UnitPrice.IsNegative() {
		return &ValidationError{Field: "unit_price", Message: "unit price cannot be negative"}
	}
	return s.productRepo.Create(product)
}

func (s *productService) GetProductByID(id uint) (*models.Product, error) {
	product, err := s.productRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *productService) GetActiveProducts() ([]models.Product, error) {
	return s.productRepo.GetActive()
}

func (s *productService) GetAllProducts() ([]models.Product, error) {
	return s.productRepo.GetAll()
}

func (s *productService) UpdateProduct(product *models.Product) error {
	if product.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if product.UnitPrice.IsNegative() {
		return &ValidationError{Field: "unit_price", Message: "unit price cannot be negative"}
	}
	return s.productRepo.Update(product)
}

func (s *productService) DeleteProduct(id uint) error {
	return s.productRepo.Delete(id)
}
