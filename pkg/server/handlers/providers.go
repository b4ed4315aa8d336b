package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/soundprediction/azurellm/pkg/nlp"
)

// ListProviders handles GET /api/v1/providers
func ListProviders(c *gin.Context) {
	providers := make([]nlp.Provider, 0, len(nlp.BuiltInProviders))
	for _, p := range nlp.BuiltInProviders {
		providers = append(providers, p)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i].ID < providers[j].ID })
	c.JSON(http.StatusOK, gin.H{"providers": providers})
}

// ListModels handles GET /api/v1/models, optionally filtered with
// ?capability=embedding.
func ListModels(c *gin.Context) {
	capability := c.Query("capability")
	if capability == "" {
		c.JSON(http.StatusOK, gin.H{"models": nlp.BuiltInModels})
		return
	}
	models := nlp.GetModelsByCapability(nlp.TaskCapability(capability))
	if models == nil {
		models = []nlp.Model{}
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}
