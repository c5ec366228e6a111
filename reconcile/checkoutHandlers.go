package reconcile

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
)

// CreateCheckoutHandler records a checkout from transaction parameters the
// storefront already holds.
func CreateCheckoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := resolveUsername(c); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var input models.NewCheckout
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())
		checkout, err := models.CreateCheckoutFromParams(c.Request.Context(), db, &input)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, checkout)
	}
}

// CreateVaultCheckoutHandler records a checkout by resolving a vaulted
// payment-method token at the gateway.
func CreateVaultCheckoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := resolveUsername(c); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if !gatewayConfigured() {
			c.JSON(http.StatusConflict, gin.H{"error": "braintree gateway is not configured"})
			return
		}

		var input models.NewVaultCheckout
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}

		vault, err := braintreeVault()
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())
		checkout, err := models.CreateCheckoutFromVaultToken(c.Request.Context(), db, vault, &input)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, checkout)
	}
}

// CheckoutActionsHandler reports which gateway operations are legal for the
// checkout's current state.
func CheckoutActionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := resolveUsername(c); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid checkout id"})
			return
		}

		db := config.GetDB()
		checkout, err := models.GetCheckoutById(c.Request.Context(), db, id)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"id":        checkout.ID,
			"state":     checkout.State,
			"final":     checkout.State.IsFinal(),
			"canVoid":   checkout.State.CanVoid(),
			"canSettle": checkout.State.CanSettle(),
			"canCredit": checkout.State.CanCredit(),
		})
	}
}
