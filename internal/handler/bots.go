package handler

import (
	"net/http"
	"net/url"

	"github.com/menezmethod/botgate/internal/apierror"
	"github.com/menezmethod/botgate/internal/pipeline"
)

// CodeInvalidDocument is raised for request values of the wrong shape.
const CodeInvalidDocument = "InvalidDocument"

// Bots is the bot collection.
//
//	GET  /v1/bots
//	POST /v1/bots   {"id": "...", "name": "..."}
type Bots struct {
	Store *BotStore
}

// OnGet lists bots.
func (h Bots) OnGet(_ *pipeline.Request, resp *pipeline.Response) error {
	resp.JSON = map[string]any{"bots": h.Store.List()}
	return nil
}

// OnPost creates a bot.
func (h Bots) OnPost(req *pipeline.Request, resp *pipeline.Response) error {
	doc, err := document(req)
	if err != nil {
		return err
	}
	id, err := stringField(doc, "id")
	if err != nil {
		return err
	}
	name, err := stringField(doc, "name")
	if err != nil {
		return err
	}

	b, err := h.Store.Create(id, name)
	if err != nil {
		return err
	}
	resp.Status = http.StatusCreated
	resp.Header.Set("Location", "/v1/bots/"+url.PathEscape(b.ID))
	resp.JSON = b
	return nil
}

// BotItem is a single bot.
//
//	GET    /v1/bots/{id}
//	DELETE /v1/bots/{id}
type BotItem struct {
	Store *BotStore
}

// OnGet returns the bot.
func (h BotItem) OnGet(req *pipeline.Request, resp *pipeline.Response) error {
	b, err := h.Store.Get(req.Params["id"])
	if err != nil {
		return err
	}
	resp.JSON = b
	return nil
}

// OnDelete removes the bot.
func (h BotItem) OnDelete(req *pipeline.Request, resp *pipeline.Response) error {
	if err := h.Store.Delete(req.Params["id"]); err != nil {
		return err
	}
	resp.Status = http.StatusNoContent
	resp.SetBody("")
	return nil
}

// BotPlatform binds a bot to a platform.
//
//	PUT /v1/bots/{id}/platform   {"platform": "slack"}
type BotPlatform struct {
	Store *BotStore
}

// OnPut sets the platform.
func (h BotPlatform) OnPut(req *pipeline.Request, resp *pipeline.Response) error {
	doc, err := document(req)
	if err != nil {
		return err
	}
	platform, err := stringField(doc, "platform")
	if err != nil {
		return err
	}

	b, err := h.Store.SetPlatform(req.Params["id"], platform)
	if err != nil {
		return err
	}
	resp.JSON = b
	return nil
}

// BotMessages sends a message through a bot. The route requires the
// secret even when the gate itself is not enforcing it.
//
//	POST /v1/bots/{id}/messages   {"text": "..."}
type BotMessages struct {
	Store *BotStore
}

// OnPost delivers the message.
func (h BotMessages) OnPost(req *pipeline.Request, resp *pipeline.Response) error {
	doc, err := document(req)
	if err != nil {
		return err
	}
	text, err := stringField(doc, "text")
	if err != nil {
		return err
	}
	if text == "" {
		return invalidDocument(`Field "text" is required.`)
	}

	msg, err := h.Store.Send(req.Context(), req.Params["id"], text)
	if err != nil {
		return err
	}
	resp.Status = http.StatusAccepted
	resp.JSON = msg
	return nil
}

// document returns the request value as an object.
func document(req *pipeline.Request) (map[string]any, error) {
	doc, ok := req.JSON.(map[string]any)
	if !ok {
		return nil, invalidDocument("Expected a JSON object.")
	}
	return doc, nil
}

// stringField returns doc[key] as a string. A missing key is "".
func stringField(doc map[string]any, key string) (string, error) {
	v, ok := doc[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", invalidDocument(`Field "` + key + `" must be a string.`)
	}
	return s, nil
}

func invalidDocument(message string) *apierror.Error {
	return apierror.BadRequest(CodeInvalidDocument, message)
}

var (
	_ pipeline.Getter  = Bots{}
	_ pipeline.Poster  = Bots{}
	_ pipeline.Getter  = BotItem{}
	_ pipeline.Deleter = BotItem{}
	_ pipeline.Putter  = BotPlatform{}
	_ pipeline.Poster  = BotMessages{}
)
