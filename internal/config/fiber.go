package config

import (
	"SignSync/pkg/handlerUtil"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

func NewFiber(logger *logrus.Logger, cfg *Env) *fiber.App {
	app := fiber.New(
		fiber.Config{
			AppName:               "SignSync Relay",
			BodyLimit:             4 * 1024 * 1024,
			DisableKeepalive:      false,
			StrictRouting:         true,
			CaseSensitive:         true,
			DisableStartupMessage: !cfg.IsDevelopment(),
			EnablePrintRoutes:     cfg.IsDevelopment(),
			JSONEncoder:           jsoniter.Marshal,
			JSONDecoder:           jsoniter.Unmarshal,
			ErrorHandler:          handlerUtil.New(logger).HandleHTTP,
		})

	return app
}
