// Package server provides the Echo web server for the model inspection
// viewer.
package server

import (
	"embed"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/nzoschke/wakelab/pkg/config"
	"github.com/nzoschke/wakelab/pkg/features"
	"github.com/nzoschke/wakelab/pkg/inspect"
	"github.com/nzoschke/wakelab/pkg/probe"
	"github.com/nzoschke/wakelab/pkg/wakeword"
)

//go:embed static/index.html
var static embed.FS

const maxChunks = 1000

// ModelFactory builds a fresh model for one comparison run.
type ModelFactory func(seed int64) (*wakeword.Model, error)

// Server serves inspection results and streaming comparisons.
type Server struct {
	cfg      *config.Config
	newModel ModelFactory
}

// New creates a server over the configured registry. newModel is called per
// comparison request.
func New(cfg *config.Config, newModel ModelFactory) *Server {
	return &Server{cfg: cfg, newModel: newModel}
}

// Models is the /api/models response.
type Models struct {
	Models        []inspect.ModelInfo   `json:"models"`
	Compatibility inspect.Compatibility `json:"compatibility"`
}

// Echo returns the configured router.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/", serveIndex)
	e.GET("/api/models", s.listModels)
	e.GET("/api/compare", s.compare)
	return e
}

// Run starts the web server on addr.
func (s *Server) Run(addr string) error {
	return s.Echo().Start(addr)
}

func serveIndex(c echo.Context) error {
	data, err := static.ReadFile("static/index.html")
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.HTMLBlob(http.StatusOK, data)
}

// listModels inspects the configured targets. Load errors are reported per
// model.
func (s *Server) listModels(c echo.Context) error {
	targets := make([]inspect.Target, len(s.cfg.Inspect))
	for i, t := range s.cfg.Inspect {
		targets[i] = inspect.Target{Name: t.Name, Path: t.Path}
	}
	infos := inspect.Inspect(io.Discard, targets...)

	ours := inspect.Load(inspect.Target{Name: "Ours", Path: s.cfg.Compare.Ours})
	official := inspect.Load(inspect.Target{Name: "Official", Path: s.cfg.Compare.Official})

	return c.JSON(http.StatusOK, Models{
		Models:        infos,
		Compatibility: inspect.Compare(ours, official),
	})
}

// compare runs a streaming comparison and returns its steps.
func (s *Server) compare(c echo.Context) error {
	chunks, err := intParam(c, "chunks", 10)
	if err != nil || chunks <= 0 || chunks > maxChunks {
		return echo.NewHTTPError(http.StatusBadRequest, "chunks must be between 1 and 1000")
	}
	seed, err := intParam(c, "seed", 0)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "seed must be an integer")
	}

	m, err := s.newModel(int64(seed))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer m.Close()

	steps, err := probe.StreamCompare(io.Discard, m, probe.NewNoiseSource(probe.ChunkSeed(int64(seed)), features.ChunkSize), chunks)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, steps)
}

func intParam(c echo.Context, name string, def int) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
