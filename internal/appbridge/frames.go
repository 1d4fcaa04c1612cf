package appbridge

import (
	"fmt"

	"github.com/sadsciencee/modalkit/internal/modalid"
	"github.com/sadsciencee/modalkit/internal/transport"
	"github.com/sadsciencee/modalkit/internal/transport/memory"
	"github.com/sadsciencee/modalkit/internal/transport/wsrelay"
)

// Page renders a modal route inside ctx. instance is the id segment of
// modal.<route>.<id>. The returned func unmounts the page.
type Page func(ctx transport.Context, instance string) (unmount func(), err error)

// LocalFrames loads modal frames as contexts of env, picking the page by the
// route segment of the modal id.
func LocalFrames(env *memory.Environment, routes map[string]Page) FrameLoader {
	return FrameLoaderFunc(func(id string) (transport.Window, func(), error) {
		route, instance, ok := modalid.Parse(modalid.ID(id))
		if !ok {
			return nil, nil, fmt.Errorf("load frame: %q is not a modal id", id)
		}
		page, ok := routes[route]
		if !ok {
			return nil, nil, fmt.Errorf("load frame %s: no page for route %q", id, route)
		}

		ctx, err := env.NewContext(id)
		if err != nil {
			return nil, nil, fmt.Errorf("load frame %s: %w", id, err)
		}
		unmount, err := page(ctx, instance)
		if err != nil {
			ctx.Close()
			return nil, nil, fmt.Errorf("load frame %s: %w", id, err)
		}

		return env.Window(id), func() {
			if unmount != nil {
				unmount()
			}
			ctx.Close()
		}, nil
	})
}

// RemoteFrames targets frames connected to the relay under the modal id.
// The remote page must already be listening when the modal is shown.
func RemoteFrames(client *wsrelay.Client) FrameLoader {
	return FrameLoaderFunc(func(id string) (transport.Window, func(), error) {
		return client.Window(id), func() {}, nil
	})
}
