package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/menezmethod/botgate/internal/platform"
	"github.com/menezmethod/botgate/internal/version"
)

var _ = Describe("Health", func() {
	It("returns 200 and status ok", func() {
		rec := send(newTestRouter(NewBotStore(nil)), http.MethodGet, "/health", "")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))
		var resp map[string]string
		Expect(json.NewDecoder(rec.Body).Decode(&resp)).NotTo(HaveOccurred())
		Expect(resp["status"]).To(Equal("ok"))
		Expect(resp["version"]).To(Equal(version.Version))
	})

	It("answers OPTIONS with the allowed methods", func() {
		rec := send(newTestRouter(NewBotStore(nil)), http.MethodOptions, "/health", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Allow")).To(Equal("GET, HEAD, OPTIONS"))
	})
})

var _ = Describe("Version", func() {
	It("returns the build version without caching", func() {
		rec := send(newTestRouter(NewBotStore(nil)), http.MethodGet, "/version", "")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Cache-Control")).To(Equal("no-store"))
		Expect(rec.Body.String()).To(MatchJSON(`{"version":"` + version.Version + `"}`))
	})
})

var _ = Describe("Echo", func() {
	It("echoes an object", func() {
		rec := send(newTestRouter(NewBotStore(nil)), http.MethodPost, "/v1/echo", `{"hello":"world","n":1.50}`)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal(`{"hello":"world","n":1.50}`))
	})

	It("requires a JSON content type", func() {
		rec := send(newTestRouter(NewBotStore(nil)), http.MethodPost, "/v1/echo", "")
		Expect(rec.Code).To(Equal(http.StatusUnsupportedMediaType))
	})

	It("refuses scalars", func() {
		rec := send(newTestRouter(NewBotStore(nil)), http.MethodPost, "/v1/echo", `"just a string"`)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(rec.Body.String()).To(ContainSubstring(CodeInvalidDocument))
	})

	It("rejects GET with 405", func() {
		rec := send(newTestRouter(NewBotStore(nil)), http.MethodGet, "/v1/echo", "")
		Expect(rec.Code).To(Equal(http.StatusMethodNotAllowed))
		Expect(rec.Header().Get("Allow")).To(Equal("POST, OPTIONS"))
		Expect(rec.Body.Len()).To(BeZero())
	})
})

var _ = Describe("Bots", func() {
	var (
		store  *BotStore
		outbox *platform.Outbox
		router http.Handler
	)

	BeforeEach(func() {
		outbox = &platform.Outbox{}
		store = NewBotStore(outbox)
		router = newTestRouter(store)
	})

	createBot := func(id string) {
		rec := send(router, http.MethodPost, "/v1/bots", `{"id":"`+id+`","name":"Support"}`)
		Expect(rec.Code).To(Equal(http.StatusCreated))
	}

	When("creating a bot", func() {
		It("returns 201 with a Location header", func() {
			rec := send(router, http.MethodPost, "/v1/bots", `{"id":"support","name":"Support"}`)

			Expect(rec.Code).To(Equal(http.StatusCreated))
			Expect(rec.Header().Get("Location")).To(Equal("/v1/bots/support"))
			var b Bot
			Expect(json.Unmarshal(rec.Body.Bytes(), &b)).To(Succeed())
			Expect(b.ID).To(Equal("support"))
			Expect(b.Name).To(Equal("Support"))
		})

		It("accepts form bodies", func() {
			rec := sendForm(router, "/v1/bots", "id=sales&name=Sales")
			Expect(rec.Code).To(Equal(http.StatusCreated))
			Expect(store.List()).To(HaveLen(1))
		})

		It("returns 409 for a duplicate id", func() {
			createBot("support")
			rec := send(router, http.MethodPost, "/v1/bots", `{"id":"support"}`)

			Expect(rec.Code).To(Equal(http.StatusConflict))
			Expect(rec.Body.String()).To(MatchJSON(`{
				"status": "409 Conflict",
				"code": "BotAlreadyExists",
				"message": "Bot \"support\" already exists."
			}`))
		})

		It("returns 400 without an id", func() {
			rec := send(router, http.MethodPost, "/v1/bots", `{"name":"Nameless"}`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(ContainSubstring("BotTrainingError"))
		})

		It("returns 400 for a non-string id", func() {
			rec := send(router, http.MethodPost, "/v1/bots", `{"id":42}`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(ContainSubstring(CodeInvalidDocument))
		})

		It("returns 400 for an array body", func() {
			rec := send(router, http.MethodPost, "/v1/bots", `[{"id":"a"}]`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	When("reading bots", func() {
		It("lists bots in id order", func() {
			createBot("b")
			createBot("a")
			rec := send(router, http.MethodGet, "/v1/bots", "")

			Expect(rec.Code).To(Equal(http.StatusOK))
			var resp struct {
				Bots []Bot `json:"bots"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Bots).To(HaveLen(2))
			Expect(resp.Bots[0].ID).To(Equal("a"))
		})

		It("lists an empty registry as an empty array", func() {
			rec := send(router, http.MethodGet, "/v1/bots", "")
			Expect(rec.Body.String()).To(Equal(`{"bots":[]}`))
		})

		It("returns 404 BotDoesNotExist for an unknown bot", func() {
			rec := send(router, http.MethodGet, "/v1/bots/ghost", "")
			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(rec.Body.String()).To(ContainSubstring("BotDoesNotExist"))
		})
	})

	When("deleting a bot", func() {
		It("returns 204 and removes it", func() {
			createBot("support")
			rec := send(router, http.MethodDelete, "/v1/bots/support", "")

			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(rec.Body.Len()).To(BeZero())
			Expect(store.List()).To(BeEmpty())
		})

		It("returns 404 when it does not exist", func() {
			Expect(send(router, http.MethodDelete, "/v1/bots/ghost", "").Code).To(Equal(http.StatusNotFound))
		})
	})

	When("binding a platform", func() {
		BeforeEach(func() {
			createBot("support")
		})

		It("binds a supported platform", func() {
			rec := send(router, http.MethodPut, "/v1/bots/support/platform", `{"platform":"Slack"}`)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"platform":"slack"`))
		})

		It("returns 409 PlatformNotSupported with the platform name", func() {
			rec := send(router, http.MethodPut, "/v1/bots/support/platform", `{"platform":"irc"}`)
			Expect(rec.Code).To(Equal(http.StatusConflict))

			var body map[string]string
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body["code"]).To(Equal("PlatformNotSupported"))
			Expect(body["platform_name"]).To(Equal("irc"))
		})

		It("returns 409 PlatformAlreadySet on a second binding", func() {
			send(router, http.MethodPut, "/v1/bots/support/platform", `{"platform":"telegram"}`)
			rec := send(router, http.MethodPut, "/v1/bots/support/platform", `{"platform":"slack"}`)

			Expect(rec.Code).To(Equal(http.StatusConflict))
			Expect(rec.Body.String()).To(ContainSubstring(`"platform_name":"telegram"`))
		})
	})

	When("sending a message", func() {
		BeforeEach(func() {
			createBot("support")
		})

		It("requires the secret even though the gate is lenient", func() {
			send(router, http.MethodPut, "/v1/bots/support/platform", `{"platform":"slack"}`)

			rec := send(router, http.MethodPost, "/v1/bots/support/messages", `{"text":"hi"}`)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(outbox.Sent()).To(BeEmpty())
		})

		It("delivers with the secret", func() {
			send(router, http.MethodPut, "/v1/bots/support/platform", `{"platform":"slack"}`)

			rec := send(router, http.MethodPost, "/v1/bots/support/messages", `{"text":"hi"}`,
				"Authorization", testSecret)
			Expect(rec.Code).To(Equal(http.StatusAccepted))
			Expect(outbox.Sent()).To(HaveLen(1))
			Expect(outbox.Sent()[0].Platform).To(Equal("slack"))

			b, err := store.Get("support")
			Expect(err).NotTo(HaveOccurred())
			Expect(b.Messages).To(Equal(1))
		})

		It("returns 409 PlatformNotAvailable without a platform", func() {
			rec := send(router, http.MethodPost, "/v1/bots/support/messages", `{"text":"hi"}`,
				"Authorization", testSecret)
			Expect(rec.Code).To(Equal(http.StatusConflict))
			Expect(rec.Body.String()).To(ContainSubstring("PlatformNotAvailable"))
		})

		It("returns 400 without text", func() {
			rec := send(router, http.MethodPost, "/v1/bots/support/messages", `{}`,
				"Authorization", testSecret)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 500 CanNotSendMessage when delivery fails", func() {
			failing := NewBotStore(platform.SenderFunc(func(context.Context, platform.Message) error {
				return errors.New("platform timeout")
			}))
			_, err := failing.Create("support", "")
			Expect(err).NotTo(HaveOccurred())
			_, err = failing.SetPlatform("support", "telegram")
			Expect(err).NotTo(HaveOccurred())

			rec := send(newTestRouter(failing), http.MethodPost, "/v1/bots/support/messages", `{"text":"hi"}`,
				"Authorization", testSecret)
			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			Expect(rec.Body.String()).To(ContainSubstring("CanNotSendMessage"))
			Expect(rec.Body.String()).NotTo(ContainSubstring("platform timeout"))
		})
	})
})
