package handlers

import "github.com/gofiber/fiber/v3"

// ErrUnknownSource is returned when the source category is not recognized
var ErrUnknownSource = fiber.NewError(fiber.StatusNotFound, "unknown source category")

// ErrArtifactNotFound is returned when no pipeline run has produced the requested artifact yet
var ErrArtifactNotFound = fiber.NewError(fiber.StatusNotFound, "artifact not available yet")

// ErrRunInProgress is returned when an identical task is already queued or running
var ErrRunInProgress = fiber.NewError(fiber.StatusConflict, "run already queued or in progress")
