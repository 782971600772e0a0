package router

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"scankiosk/internal/mapping"
	"scankiosk/internal/panel"
)

var ErrConfigUnavailable = errors.New("configuration is not loaded")

type UnknownCodeError struct {
	Code string
}

func (e *UnknownCodeError) Error() string {
	return fmt.Sprintf("unknown code: %s", e.Code)
}

type Catalog interface {
	Ready() bool
	Lookup(raw string) (mapping.Entry, bool)
}

type Player interface {
	Play(resource, description string)
}

type Display interface {
	SetStatus(panel.Status)
	ShowError(text string)
}

// Router turns a normalized code into a play request or a visible error.
type Router struct {
	catalog Catalog
	player  Player
	display Display
	log     zerolog.Logger
}

func New(catalog Catalog, player Player, display Display, log zerolog.Logger) *Router {
	return &Router{
		catalog: catalog,
		player:  player,
		display: display,
		log:     log,
	}
}

func (r *Router) Route(code string) error {
	if !r.catalog.Ready() {
		r.display.ShowError(ErrConfigUnavailable.Error())
		r.log.Warn().Str("code", code).Msg("scan ignored: mapping not loaded")
		return ErrConfigUnavailable
	}

	entry, ok := r.catalog.Lookup(code)
	if !ok {
		err := &UnknownCodeError{Code: mapping.Normalize(code)}
		r.display.ShowError(err.Error())
		r.display.SetStatus(panel.StatusIdle)
		r.log.Info().Str("code", err.Code).Msg("unknown code")
		return err
	}

	r.log.Info().Str("code", entry.Code).Str("file", entry.File).Msg("code matched")
	r.player.Play(entry.File, entry.Description)
	return nil
}
