// Package httpapi exposes the matching core and the decision store over
// HTTP, translating app.py's FastAPI routes onto github.com/gofiber/fiber/v3.
package httpapi

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"

	"github.com/bitem-heg-geneve/occmatch/internal/cache"
	"github.com/bitem-heg-geneve/occmatch/internal/store"
	"github.com/bitem-heg-geneve/occmatch/pkg/matching"
)

// Server wires the matching core to the store and cache collaborators.
type Server struct {
	Store *store.Store
	Cache *cache.Cache
	app   *fiber.App
}

// New builds a fiber.App with every route registered. CORS and response
// compression stand in for app.py's CORSMiddleware and GZipMiddleware.
func New(s *Server) *fiber.App {
	app := fiber.New()

	app.Use(recoverMiddleware)
	app.Use(cors.New())
	app.Use(compress.New())

	app.Post("/score", s.handleScore)
	app.Post("/newOcurrenceRelations", s.handleNewOccurrenceRelations)
	app.Post("/occurrences", s.handleOccurrences)
	app.Get("/occurrenceRelations", s.handleListEvents)

	s.app = app
	return app
}

// recoverMiddleware mirrors app.py's catch_exceptions_middleware: any
// panic surfaced while handling a request becomes a 500 with a JSON body
// instead of a closed connection.
func recoverMiddleware(c fiber.Ctx) error {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] panic handling %s %s: %v", c.Method(), c.Path(), r)
			_ = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": fmt.Sprint(r)})
		}
	}()
	return c.Next()
}

// scoreRequest is the body of POST /score: a bare occurrence pair.
type scoreRequest struct {
	Subject matching.Occurrence `json:"subject"`
	Related matching.Occurrence `json:"related"`
}

func (s *Server) handleScore(c fiber.Ctx) error {
	var req scoreRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	compute := func() (matching.Result, error) {
		return matching.Score(req.Subject, req.Related)
	}

	var result matching.Result
	var err error
	if s.Cache != nil {
		result, err = s.Cache.Score(c.Context(), req.Subject, req.Related, compute)
	} else {
		result, err = compute()
	}
	if malformed, ok := err.(*matching.MalformedField); ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "malformed field",
			"field": malformed.Field,
			"value": malformed.RawValue,
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(result)
}

// occurrenceRelationRequest is one entry of newOccurrenceRelationsRequest,
// mirroring app.py's OcurrenceRelation model.
type occurrenceRelationRequest struct {
	Occurrence    matching.Occurrence `json:"occurrence"`
	Decision      *bool               `json:"decision"`
	IsNewDecision bool                `json:"is_new_decision"`
}

// newOccurrenceRelationsRequest mirrors app.py's OccurrenceRelationsModel.
type newOccurrenceRelationsRequest struct {
	InstitutionKey string                      `json:"institutionKey"`
	DatasetKey     string                      `json:"datasetKey"`
	User           struct {
		Name  string `json:"name"`
		ORCID string `json:"orcid"`
	} `json:"user"`
	RefOccurrence matching.Occurrence         `json:"refOccurrence"`
	Relations     []occurrenceRelationRequest `json:"relations"`
}

func (s *Server) handleNewOccurrenceRelations(c fiber.Ctx) error {
	var req newOccurrenceRelationsRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	ctx := c.Context()
	user, err := s.Store.GetOrCreateUser(ctx, req.User.Name, req.User.ORCID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	refData, err := json.Marshal(req.RefOccurrence)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid refOccurrence"})
	}
	refOcc, err := s.Store.GetOrCreateOccurrence(ctx, gbifKeyOf(req.RefOccurrence), req.DatasetKey, req.InstitutionKey, "", refData)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	relations := make([]store.OccurrenceRelation, 0, len(req.Relations))
	for _, rel := range req.Relations {
		data, err := json.Marshal(rel.Occurrence)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid relation occurrence"})
		}
		occ, err := s.Store.GetOrCreateOccurrence(ctx, gbifKeyOf(rel.Occurrence), "", "", "", data)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		relations = append(relations, store.OccurrenceRelation{
			RelatedOccurrenceID: occ.ID,
			Decision:            rel.Decision,
			IsNewDecision:       rel.IsNewDecision,
		})
	}

	if _, err := s.Store.RecordEvent(ctx, user.ID, refOcc.ID, req.DatasetKey, req.InstitutionKey, relations); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"ok": true})
}

func gbifKeyOf(occ matching.Occurrence) int64 {
	switch v := occ["key"].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

func (s *Server) handleOccurrences(c fiber.Ctx) error {
	var ids []int64
	if err := json.Unmarshal(c.Body(), &ids); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	occurrences, err := s.Store.OccurrencesByID(c.Context(), ids)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	out := make(map[string]json.RawMessage, len(occurrences))
	for id, data := range occurrences {
		out[strconv.FormatInt(id, 10)] = data
	}
	return c.JSON(out)
}

func (s *Server) handleListEvents(c fiber.Ctx) error {
	filter := store.EventFilter{
		InstitutionKey: c.Query("institutionKey"),
		DatasetKey:     c.Query("datasetKey"),
	}
	if v := c.Query("occurrenceKey"); v != "" {
		filter.OccurrenceKey, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := c.Query("eventId"); v != "" {
		filter.EventID, _ = strconv.ParseInt(v, 10, 64)
	}
	withOccurrence := c.Query("withOccurrence") == "true"

	events, err := s.Store.ListEvents(c.Context(), filter)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	occurrenceIDs := map[int64]struct{}{}
	payload := make([]fiber.Map, 0, len(events))
	for _, e := range events {
		relations := make([]fiber.Map, 0, len(e.Relations))
		for _, r := range e.Relations {
			if withOccurrence {
				occurrenceIDs[r.RelatedOccurrenceID] = struct{}{}
			}
			relations = append(relations, fiber.Map{
				"relatedOccurrenceId": r.RelatedOccurrenceID,
				"decision":            r.Decision,
				"is_new_decision":     r.IsNewDecision,
			})
		}
		if withOccurrence {
			occurrenceIDs[e.RefOccurrenceID] = struct{}{}
		}
		payload = append(payload, fiber.Map{
			"id": e.ID,
			"user": fiber.Map{
				"name":  e.UserName,
				"orcid": e.UserORCID,
			},
			"refOccurrenceId":  e.RefOccurrenceID,
			"refOccurrenceKey": e.RefGBIFKey,
			"datasetKey":       e.DatasetKey,
			"institutionKey":   e.InstitutionKey,
			"relations":        relations,
		})
	}

	result := fiber.Map{"events": payload}
	if withOccurrence {
		ids := make([]int64, 0, len(occurrenceIDs))
		for id := range occurrenceIDs {
			ids = append(ids, id)
		}
		occurrences, err := s.Store.OccurrencesByID(c.Context(), ids)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		out := make(map[string]json.RawMessage, len(occurrences))
		for id, data := range occurrences {
			out[strconv.FormatInt(id, 10)] = data
		}
		result["occurrences"] = out
	}
	return c.JSON(result)
}
