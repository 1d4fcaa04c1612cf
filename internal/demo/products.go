package demo

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/sadsciencee/modalkit/internal/appbridge"
	"github.com/sadsciencee/modalkit/internal/envelope"
	"github.com/sadsciencee/modalkit/internal/modal"
	"github.com/sadsciencee/modalkit/internal/transport"
)

// Product is an item the products modal lets the merchant pick.
type Product struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// SharedState is what the host hands the products modal when it loads.
type SharedState struct {
	Shop     string    `json:"shop"`
	Products []Product `json:"products"`
}

// Selection is sent by the products modal when the merchant saves.
type Selection struct {
	Action     string   `json:"action"`
	ProductIDs []string `json:"productIds"`
}

// SaveResult is the host's reply to a Selection.
type SaveResult struct {
	Saved int `json:"saved"`
}

// ActionSave is the Selection action for a save.
const ActionSave = "save"

// DefaultSharedState returns the catalog the demo host shares.
func DefaultSharedState() SharedState {
	return SharedState{
		Shop: "modalkit-demo.myshopify.com",
		Products: []Product{
			{ID: "gid://shopify/Product/1", Title: "Snowboard"},
			{ID: "gid://shopify/Product/2", Title: "Wax"},
			{ID: "gid://shopify/Product/3", Title: "Bindings"},
		},
	}
}

// ProductsPage renders the products modal. The primary button saves every
// shared product and the secondary button closes the modal. A host reply is
// acknowledged with a toast, then the page is asked to reload and close.
func ProductsPage(route string, logger *zap.Logger, opts ...modal.Option) appbridge.Page {
	return func(ctx transport.Context, instance string) (func(), error) {
		p := &productsPage{logger: logger}
		g, err := modal.NewGuest(ctx, modal.GuestConfig{
			ID:                instance,
			Route:             route,
			OnPrimaryAction:   p.save,
			OnSecondaryAction: p.cancel,
			OnReply:           p.onReply,
			OnLoad:            p.onLoad,
		}, append([]modal.Option{modal.WithLogger(logger)}, opts...)...)
		if err != nil {
			return nil, err
		}
		p.guest = g
		return g.Unmount, nil
	}
}

type productsPage struct {
	guest  *modal.Guest
	logger *zap.Logger
}

func (p *productsPage) onLoad(shared json.RawMessage, _ envelope.TitleBarState) {
	var s SharedState
	if err := json.Unmarshal(shared, &s); err != nil {
		p.logger.Warn("products modal received unexpected shared state", zap.Error(err))
		return
	}
	p.logger.Info("products modal loaded", zap.String("shop", s.Shop), zap.Int("products", len(s.Products)))
}

func (p *productsPage) save() {
	var s SharedState
	if err := p.guest.DecodeParentState(&s); err != nil {
		_ = p.guest.Toast("Products are still loading", true)
		return
	}
	ids := make([]string, 0, len(s.Products))
	for _, prod := range s.Products {
		ids = append(ids, prod.ID)
	}
	_ = p.guest.SendMessage(Selection{Action: ActionSave, ProductIDs: ids})
}

func (p *productsPage) cancel() {
	_ = p.guest.RequestClose("", false)
}

func (p *productsPage) onReply(data json.RawMessage) {
	var r SaveResult
	if err := json.Unmarshal(data, &r); err != nil {
		p.logger.Warn("products modal received unexpected reply", zap.Error(err))
		return
	}
	_ = p.guest.Toast(fmt.Sprintf("Saved %d products", r.Saved), false)
	_ = p.guest.ReloadParent(true)
}
