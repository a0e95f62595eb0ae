// Package content reconciles the lifecycle of offered contents against the
// scenes that render them.
//
// A content is offered by a remote provider for a category (a placement slot
// with a size and a display). Once described, the content is bound to a scene.
// Several contents may share one scene, so every content records its own
// desired scene state and the scene is driven towards the highest of them.
//
// Architecture:
//
//	┌─────────────────────────────────────────────────────────┐
//	│                 Controller (controller.go)               │
//	│  public operations: RequestReady, Show, Hide, Release…   │
//	│  ┌────────────┐  ┌────────────┐  ┌──────────────────┐   │
//	│  │ registries │  │ scheduler  │  │ SharedSceneState │   │
//	│  └────────────┘  └────────────┘  └──────────────────┘   │
//	│                                                          │
//	│  Update(now, handler):                                   │
//	│   1. ProtocolConsumer.DispatchEvents                     │
//	│   2. SceneControl.DispatchEvents                         │
//	│   3. SceneControl.Flush                                  │
//	│   4. execute due scheduled commands                      │
//	│   5. release timed-out ready requests                    │
//	│   6. dispatch queued events to handler                   │
//	└─────────────────────────────────────────────────────────┘
//
// # Thread Safety
//
// The Controller is not safe for concurrent use. It must be owned by a single
// goroutine; see the compositor package for the runner that does this.
//
// # Usage
//
//	ctrl, err := content.NewController(content.Config{Categories: cats}, consumer, sceneCtl, log)
//	if err != nil {
//	    return err
//	}
//	for range ticker.C {
//	    if err := ctrl.Update(nowMillis(), handler); err != nil {
//	        log.Error("update failed", "error", err)
//	    }
//	}
package content
