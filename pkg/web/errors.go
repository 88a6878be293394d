package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
	"github.com/arjanchaudharyy/flowdeck/pkg/persistence"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleTaxonomyError maps the error taxonomy onto HTTP problem responses.
// The taxonomy kind becomes the problem type so clients can switch on it.
func handleTaxonomyError(c fiber.Ctx, err error) error {
	if persistence.IsRecordNotFound(err) || persistence.IsApprovalNotFound(err) {
		return notFound(c, err.Error())
	}

	kind := models.KindOf(err)

	status := fiber.StatusInternalServerError

	switch kind {
	case models.KindValidation, models.KindConfiguration, models.KindCycle:
		status = fiber.StatusUnprocessableEntity
	case models.KindUnknownComponent:
		status = fiber.StatusNotFound
	case models.KindTimeout:
		status = fiber.StatusGatewayTimeout
	case models.KindService, models.KindContainer:
		status = fiber.StatusBadGateway
	}

	problem := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(string(kind)).
		WithDetail(err.Error())

	return c.Status(status).JSON(problem)
}
