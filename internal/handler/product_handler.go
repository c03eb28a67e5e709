package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"farmmarket/internal/activity"
	"farmmarket/internal/locale"
	"farmmarket/internal/market"
	"farmmarket/internal/media"
	"farmmarket/internal/middleware"
	"farmmarket/internal/model"
	"farmmarket/pkg/database"
	"farmmarket/pkg/logger"
	"farmmarket/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CreateProduct lists a new product for the acting farmer. The request is
// multipart form data so an image can ride along; a missing or disallowed
// image falls back to the default reference.
func CreateProduct(c echo.Context) error {
	log := logger.FromContext(c)
	farmerID := middleware.ActingUserID(c)

	name := c.FormValue("name")
	category := c.FormValue("category")
	location := c.FormValue("location")

	price, err := strconv.ParseFloat(c.FormValue("price"), 64)
	if err != nil || price <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "price must be a positive number"})
	}
	quantity, err := strconv.Atoi(c.FormValue("quantity"))
	if err != nil || quantity < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity must be a non-negative integer"})
	}
	if name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}
	if location == "" {
		location = "Not specified"
	}

	image := media.DefaultImage
	if file, err := c.FormFile("image"); err == nil && file != nil {
		src, err := file.Open()
		if err != nil {
			log.Error("Failed to open upload", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "upload failed"})
		}
		defer src.Close()

		stored, err := Media.Save(src, file.Filename)
		if err != nil {
			// Disallowed extensions keep the default image rather than
			// failing the listing.
			log.Warn("Image not stored", zap.String("filename", file.Filename), zap.Error(err))
		} else {
			image = stored
		}
	}

	product := model.Product{
		Name:     name,
		Price:    price,
		Quantity: quantity,
		Category: category,
		Location: location,
		Image:    image,
		FarmerID: farmerID,
	}

	if result := database.GetDB().Create(&product); result.Error != nil {
		log.Error("Failed to create product", zap.String("name", name), zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create product"})
	}

	activity.Record(database.GetDB(), farmerID, fmt.Sprintf("Added new product: %s", name))
	prometheus.ProductListedCounter.Inc()

	log.Info("Product listed",
		zap.Uint("product_id", product.ID),
		zap.String("name", product.Name),
		zap.Uint("farmer_id", farmerID))

	return c.JSON(http.StatusCreated, echo.Map{
		"message": locale.T(c, "Product Added!"),
		"product": product,
	})
}

// ListProducts returns all products, optionally filtered by a
// case-insensitive substring match over name, category and location.
func ListProducts(c echo.Context) error {
	log := logger.FromContext(c)

	query := c.QueryParam("q")
	products, err := market.SearchProducts(database.GetDB(), query)
	if err != nil {
		log.Error("Failed to list products", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve products"})
	}

	return c.JSON(http.StatusOK, products)
}

// MyProducts returns the acting farmer's own listings.
func MyProducts(c echo.Context) error {
	log := logger.FromContext(c)
	farmerID := middleware.ActingUserID(c)

	var products []model.Product
	if err := database.GetDB().Where("farmer_id = ?", farmerID).Find(&products).Error; err != nil {
		log.Error("Failed to list farmer products", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve products"})
	}

	return c.JSON(http.StatusOK, products)
}
