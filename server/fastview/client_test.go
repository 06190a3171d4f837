package fastview

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"
)

func TestClient(t *testing.T) {
	Convey("Given a websocket endpoint publishing ele-updates", t, func() {
		updates := make(chan []EleUpdate)
		syncErrs := make(chan error, 1)
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cli, err := NewClient[[]EleUpdate](updates, w, r)
			if err != nil {
				syncErrs <- err
				return
			}
			syncErrs <- cli.Sync()
		}))
		defer ts.Close()

		url := "ws" + strings.TrimPrefix(ts.URL, "http")
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		So(err, ShouldBeNil)
		defer conn.Close()

		Convey("When an update is sent it arrives as json", func() {
			sent := []EleUpdate{{EleId: "0-0-value-text", Ops: []Op{{Key: "textContent", Value: "1.00"}}}}
			updates <- sent

			var received []EleUpdate
			So(conn.SetReadDeadline(time.Now().Add(2*time.Second)), ShouldBeNil)
			So(conn.ReadJSON(&received), ShouldBeNil)
			So(received, ShouldResemble, sent)

			Convey("And closing the update channel ends the sync without error", func() {
				close(updates)
				select {
				case err := <-syncErrs:
					So(err, ShouldBeNil)
				case <-time.After(2 * time.Second):
					So("sync did not return", ShouldBeEmpty)
				}
			})
		})
	})

	Convey("Given a plain http request", t, func() {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)

		Convey("NewClient refuses to upgrade it", func() {
			cli, err := NewClient[int](make(chan int), rec, req)
			So(cli, ShouldBeNil)
			So(err, ShouldNotBeNil)
			So(rec.Code, ShouldNotEqual, http.StatusOK)
		})
	})
}
