package httpapi

import (
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/i474232898/solar-kit-sizing/internal/common"
	"github.com/i474232898/solar-kit-sizing/internal/metrics"
	"github.com/i474232898/solar-kit-sizing/internal/solar"
	"github.com/i474232898/solar-kit-sizing/internal/solar/providers"
)

const serviceName = "solar-kit-sizing"

var validate = validator.New()

// NewApp builds the Fiber app with the centralized error handler, global
// middleware, health and metrics endpoints and the API routes.
// collector and log may be nil.
func NewApp(service *solar.Service, collector *metrics.Collector, log *zap.Logger) *fiber.App {
	if log == nil {
		log = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			if code >= fiber.StatusInternalServerError {
				cause := err
				var ie *internalError
				if errors.As(err, &ie) {
					cause = ie.err
				}
				log.Error("request failed",
					zap.String("method", c.Method()),
					zap.String("path", c.Path()),
					zap.Int("status", code),
					zap.Error(cause))
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": serviceName,
		})
	})
	if collector != nil {
		app.Get("/metrics", adaptor.HTTPHandler(collector.Handler()))
	}

	RegisterRoutes(app, service)
	return app
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *solar.Service) {
	h := &handlers{service: service}
	v1 := app.Group("/api/v1")

	v1.Post("/sizing", h.size)
	v1.Post("/sizing/compute", h.compute)
	v1.Get("/irradiance", h.irradiance)

	v1.Get("/panels", h.listPanels)
	v1.Post("/panels", h.createPanel)
	v1.Post("/panels/bulk", h.bulkCreatePanels)
	v1.Get("/panels/:id", h.getPanel)
	v1.Put("/panels/:id", h.updatePanel)
	v1.Delete("/panels/:id", h.deletePanel)

	v1.Get("/kits", h.listKits)
	v1.Post("/kits", h.createKit)
	v1.Get("/kits/:id", h.getKit)
	v1.Patch("/kits/:id", h.updateKit)
	v1.Delete("/kits/:id", h.deleteKit)
	v1.Get("/kits/:id/sizing", h.sizeKit)
	v1.Post("/kits/:id/bill", h.analyzeBill)

	v1.Get("/equipment", h.listEquipment)
	v1.Post("/equipment", h.createEquipment)
	v1.Post("/equipment/bulk", h.bulkCreateEquipment)
	v1.Get("/equipment/:id", h.getEquipment)
	v1.Put("/equipment/:id", h.updateEquipment)
	v1.Delete("/equipment/:id", h.deleteEquipment)

	v1.Get("/kits/:id/components", h.listComponents)
	v1.Post("/kits/:id/components", h.addComponent)
	v1.Post("/kits/:id/components/sizing", h.applySizingOption)
	v1.Patch("/kits/:id/components/:componentId", h.updateComponentQuantity)
	v1.Delete("/kits/:id/components/:componentId", h.removeComponent)
}

type handlers struct {
	service *solar.Service
}

// sizingRequest is the body of POST /sizing. Pointers tell a missing field from zero.
type sizingRequest struct {
	Latitude              *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude             *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	MonthlyConsumptionKwh *float64 `json:"monthlyConsumptionKwh" validate:"required,gt=0"`
}

func (h *handlers) size(c *fiber.Ctx) error {
	var req sizingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.service.Size(c.UserContext(), solar.SiteProfile{
		Latitude:              *req.Latitude,
		Longitude:             *req.Longitude,
		MonthlyConsumptionKwh: *req.MonthlyConsumptionKwh,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(res)
}

// computeRequest carries every calculator input; nothing is fetched.
type computeRequest struct {
	Site       solar.SiteProfile       `json:"site"`
	Irradiance solar.IrradianceProfile `json:"irradiance"`
	Catalog    []solar.PanelModel      `json:"catalog"`
	Config     *sizingConfigRequest    `json:"config,omitempty"`
}

// sizingConfigRequest overrides only the factors it names.
type sizingConfigRequest struct {
	MarginFactor     *float64 `json:"marginFactor"`
	PerformanceRatio *float64 `json:"performanceRatio"`
	DaysPerMonth     *float64 `json:"daysPerMonth"`
}

func (r *sizingConfigRequest) apply(cfg solar.SizingConfig) solar.SizingConfig {
	if r == nil {
		return cfg
	}
	if r.MarginFactor != nil {
		cfg.MarginFactor = *r.MarginFactor
	}
	if r.PerformanceRatio != nil {
		cfg.PerformanceRatio = *r.PerformanceRatio
	}
	if r.DaysPerMonth != nil {
		cfg.DaysPerMonth = *r.DaysPerMonth
	}
	return cfg
}

func (h *handlers) compute(c *fiber.Ctx) error {
	var req computeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}

	cfg := req.Config.apply(h.service.SizingConfig())
	res, err := solar.ComputeSizingWithConfig(cfg, req.Site, req.Irradiance, req.Catalog)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(res)
}

func (h *handlers) irradiance(c *fiber.Ctx) error {
	lat, err := parseCoordinate(c, "lat")
	if err != nil {
		return err
	}
	lon, err := parseCoordinate(c, "lon")
	if err != nil {
		return err
	}

	profile, err := h.service.Irradiance(c.UserContext(), lat, lon)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{
		"latitude":   lat,
		"longitude":  lon,
		"irradiance": profile,
	})
}

func (h *handlers) listPanels(c *fiber.Ctx) error {
	panels, err := h.service.ListPanels(c.UserContext())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(panels)
}

func (h *handlers) getPanel(c *fiber.Ctx) error {
	p, err := h.service.GetPanel(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(p)
}

func (h *handlers) createPanel(c *fiber.Ctx) error {
	var p solar.PanelModel
	if err := bindAndValidate(c, &p); err != nil {
		return err
	}

	created, err := h.service.CreatePanel(c.UserContext(), p)
	if err != nil {
		return mapError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *handlers) bulkCreatePanels(c *fiber.Ctx) error {
	var panels []solar.PanelModel
	if err := c.BodyParser(&panels); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if len(panels) == 0 {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "at least one panel is required")
	}
	for i := range panels {
		if err := validate.Struct(panels[i]); err != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "panel "+strconv.Itoa(i)+": "+err.Error())
		}
	}

	n, err := h.service.BulkCreatePanels(c.UserContext(), panels)
	if err != nil {
		return mapError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"received": len(panels),
		"inserted": n,
	})
}

func (h *handlers) updatePanel(c *fiber.Ctx) error {
	var patch solar.PanelPatch
	if err := bindAndValidate(c, &patch); err != nil {
		return err
	}

	p, err := h.service.UpdatePanel(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(p)
}

func (h *handlers) deletePanel(c *fiber.Ctx) error {
	if err := h.service.DeletePanel(c.UserContext(), c.Params("id")); err != nil {
		return mapError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// kitRequest is the body of POST /kits.
type kitRequest struct {
	Name                  string   `json:"name" validate:"required"`
	Address               string   `json:"address"`
	Latitude              *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude             *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	CapacityKw            *float64 `json:"capacityKw" validate:"omitempty,gte=0"`
	Status                string   `json:"status" validate:"omitempty,oneof=draft pending completed"`
	MonthlyConsumptionKwh *float64 `json:"monthlyConsumptionKwh" validate:"omitempty,gt=0"`
}

func (r kitRequest) toKit() solar.Kit {
	return solar.Kit{
		Name:                  r.Name,
		Address:               r.Address,
		Latitude:              r.Latitude,
		Longitude:             r.Longitude,
		CapacityKw:            r.CapacityKw,
		Status:                solar.KitStatus(r.Status),
		MonthlyConsumptionKwh: r.MonthlyConsumptionKwh,
	}
}

func (h *handlers) listKits(c *fiber.Ctx) error {
	kits, err := h.service.ListKits(c.UserContext())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(kits)
}

func (h *handlers) getKit(c *fiber.Ctx) error {
	k, err := h.service.GetKit(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(k)
}

func (h *handlers) createKit(c *fiber.Ctx) error {
	var req kitRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	k, err := h.service.CreateKit(c.UserContext(), req.toKit())
	if err != nil {
		return mapError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(k)
}

func (h *handlers) updateKit(c *fiber.Ctx) error {
	var patch solar.KitPatch
	if err := bindAndValidate(c, &patch); err != nil {
		return err
	}

	k, err := h.service.UpdateKit(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(k)
}

func (h *handlers) deleteKit(c *fiber.Ctx) error {
	if err := h.service.DeleteKit(c.UserContext(), c.Params("id")); err != nil {
		return mapError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) sizeKit(c *fiber.Ctx) error {
	res, err := h.service.SizeKit(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(res)
}

func (h *handlers) analyzeBill(c *fiber.Ctx) error {
	fh, err := c.FormFile("bill")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart field \"bill\" is required")
	}
	mimeType := fh.Header.Get(fiber.HeaderContentType)
	if !common.HasAny(mimeType, "image/", "application/pdf") {
		return fiber.NewError(fiber.StatusUnsupportedMediaType, "bill must be an image or a PDF")
	}

	f, err := fh.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "failed to read bill upload")
	}
	defer f.Close()
	image, err := io.ReadAll(f)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "failed to read bill upload")
	}

	k, data, err := h.service.AnalyzeKitBill(c.UserContext(), c.Params("id"), image, mimeType)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{
		"kit":  k,
		"bill": data,
	})
}

func (h *handlers) listEquipment(c *fiber.Ctx) error {
	items, err := h.service.ListEquipment(c.UserContext(), solar.EquipmentKind(c.Query("kind")))
	if err != nil {
		return mapError(err)
	}
	if items == nil {
		items = []solar.Equipment{}
	}
	return c.JSON(items)
}

func (h *handlers) getEquipment(c *fiber.Ctx) error {
	e, err := h.service.GetEquipment(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(e)
}

func (h *handlers) createEquipment(c *fiber.Ctx) error {
	var e solar.Equipment
	if err := bindAndValidate(c, &e); err != nil {
		return err
	}

	created, err := h.service.CreateEquipment(c.UserContext(), e)
	if err != nil {
		return mapError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *handlers) bulkCreateEquipment(c *fiber.Ctx) error {
	var items []solar.Equipment
	if err := c.BodyParser(&items); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if len(items) == 0 {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "at least one item is required")
	}
	for i := range items {
		if err := validate.Struct(items[i]); err != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "item "+strconv.Itoa(i)+": "+err.Error())
		}
	}

	n, err := h.service.BulkCreateEquipment(c.UserContext(), items)
	if err != nil {
		return mapError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"received": len(items),
		"inserted": n,
	})
}

func (h *handlers) updateEquipment(c *fiber.Ctx) error {
	var patch solar.EquipmentPatch
	if err := bindAndValidate(c, &patch); err != nil {
		return err
	}

	e, err := h.service.UpdateEquipment(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(e)
}

func (h *handlers) deleteEquipment(c *fiber.Ctx) error {
	if err := h.service.DeleteEquipment(c.UserContext(), c.Params("id")); err != nil {
		return mapError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// componentRequest is the body of POST /kits/:id/components.
type componentRequest struct {
	Kind     string   `json:"kind" validate:"required,oneof=solar_module inverter battery structure cable protection"`
	ItemID   string   `json:"itemId" validate:"required"`
	Quantity *float64 `json:"quantity" validate:"required,gt=0"`
}

type quantityRequest struct {
	Quantity *float64 `json:"quantity" validate:"required"`
}

type sizingOptionRequest struct {
	PanelID string `json:"panelId" validate:"required"`
}

func (h *handlers) listComponents(c *fiber.Ctx) error {
	bom, err := h.service.KitBillOfMaterials(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(bom)
}

func (h *handlers) addComponent(c *fiber.Ctx) error {
	var req componentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	comp, err := h.service.AddKitComponent(c.UserContext(), c.Params("id"),
		solar.ComponentKind(req.Kind), req.ItemID, *req.Quantity)
	if err != nil {
		return mapError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(comp)
}

func (h *handlers) applySizingOption(c *fiber.Ctx) error {
	var req sizingOptionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	comp, err := h.service.ApplySizingOption(c.UserContext(), c.Params("id"), req.PanelID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(comp)
}

func (h *handlers) updateComponentQuantity(c *fiber.Ctx) error {
	var req quantityRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	comp, removed, err := h.service.UpdateKitComponentQuantity(c.UserContext(), c.Params("id"), c.Params("componentId"), *req.Quantity)
	if err != nil {
		return mapError(err)
	}
	if removed {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(comp)
}

func (h *handlers) removeComponent(c *fiber.Ctx) error {
	if err := h.service.RemoveKitComponent(c.UserContext(), c.Params("id"), c.Params("componentId")); err != nil {
		return mapError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// bindAndValidate parses the JSON body into dst and runs its validate tags.
// Malformed bodies are 400s; well-formed bodies with bad values are 422s.
func bindAndValidate(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	return nil
}

func parseCoordinate(c *fiber.Ctx, key string) (float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, fiber.NewError(fiber.StatusBadRequest, key+" query parameter is required")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+key+": "+raw)
	}
	return v, nil
}

// mapError translates domain errors into HTTP errors.
func mapError(err error) error {
	switch {
	case errors.Is(err, solar.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, solar.ErrEmptyCatalog),
		errors.Is(err, solar.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, solar.ErrInvalidInput),
		errors.Is(err, solar.ErrInvalidCatalogEntry),
		errors.Is(err, solar.ErrDegenerateProduction),
		errors.Is(err, solar.ErrInvalidConfig),
		errors.Is(err, solar.ErrKitIncomplete),
		errors.Is(err, providers.ErrBillUnreadable):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, solar.ErrIrradianceUnavailable):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	case errors.Is(err, solar.ErrBillAnalysisDisabled),
		errors.Is(err, solar.ErrEquipmentDisabled):
		return fiber.NewError(fiber.StatusNotImplemented, err.Error())
	default:
		// Keep the original for logging, expose a generic message.
		return &internalError{err: err}
	}
}

type internalError struct{ err error }

func (e *internalError) Error() string { return "internal server error" }
func (e *internalError) Unwrap() error { return e.err }
