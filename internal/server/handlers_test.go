package server_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Tyrowin/lanshare/internal/server"
	"github.com/Tyrowin/lanshare/internal/testhelpers"
	"github.com/Tyrowin/lanshare/internal/transfer"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const eventTimeout = 2 * time.Second

type entryPayload struct {
	Entry server.EntryView `json:"entry"`
}

func newTestServer(t *testing.T, configure func(*server.Config)) *httptest.Server {
	t.Helper()
	req := require.New(t)

	cfg := server.NewConfig()
	cfg.UploadDir = t.TempDir()
	cfg.MaxUploadSize = 64 * transfer.KB
	if configure != nil {
		configure(&cfg)
	}
	log := logs.GetLoggerFromString("ERROR")

	db, err := transfer.OpenIndexDB("")
	req.NoError(err)
	disk, err := transfer.NewDiskStore(cfg.UploadDir)
	req.NoError(err)
	gateway := transfer.NewGateway(log, transfer.NewIndex(db, log), disk, cfg.MaxUploadSize)

	hub := server.NewHub(server.NewRoom(cfg.MaxHistoryEntries), gateway, log)
	go hub.Run()

	ts := httptest.NewServer(server.NewRouter(server.NewHandlers(hub, gateway, cfg, log), log))
	t.Cleanup(func() {
		_ = hub.Shutdown(eventTimeout)
		ts.Close()
		_ = gateway.Close()
		_ = db.Close()
	})
	return ts
}

func waitForEntry(t *testing.T, client *testhelpers.WSClient) server.EntryView {
	t.Helper()
	ev, err := client.WaitFor(server.EventNewMessage, eventTimeout)
	require.NoError(t, err)
	var payload entryPayload
	require.NoError(t, ev.Decode(&payload))
	return payload.Entry
}

func waitForHistory(t *testing.T, client *testhelpers.WSClient) []server.EntryView {
	t.Helper()
	ev, err := client.WaitFor(server.EventLoadHistory, eventTimeout)
	require.NoError(t, err)
	var payload server.LoadHistoryPayload
	require.NoError(t, ev.Decode(&payload))
	return payload.Entries
}

func uploadFile(t *testing.T, baseURL, connectionID, filename string, content []byte) (*http.Response, server.UploadResponse) {
	t.Helper()
	resp, err := testhelpers.UploadFile(baseURL, connectionID, filename, content)
	require.NoError(t, err)
	body := testhelpers.ReadBody(t, resp)

	var upload server.UploadResponse
	if resp.StatusCode == http.StatusCreated {
		require.NoError(t, json.Unmarshal(body, &upload))
	}
	return resp, upload
}

func pngContent(size int) []byte {
	data := bytes.Repeat([]byte{0x42}, size)
	copy(data, "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	return data
}

// TestChatBetweenTwoDevices verifies that a text message reaches every device,
// the sender included, under the sender's chosen name.
func TestChatBetweenTwoDevices(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t, nil)
	wsURL := testhelpers.BuildWebSocketURL(ts.URL)

	a, _ := testhelpers.MustConnect(t, wsURL)
	b, _ := testhelpers.MustConnect(t, wsURL)

	req.NoError(a.Send(server.EventIdentify, map[string]string{"name": "A", "platform": "web"}))
	req.NoError(a.Send(server.EventSendMessage, map[string]string{"content": "hello"}))

	for _, client := range []*testhelpers.WSClient{a, b} {
		entry := waitForEntry(t, client)
		req.Equal("text", string(entry.Type))
		req.Equal("hello", entry.Content)
		req.Equal("A", entry.Sender)
	}
}

func TestLateJoinerReceivesHistory(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t, nil)
	wsURL := testhelpers.BuildWebSocketURL(ts.URL)

	a, _ := testhelpers.MustConnect(t, wsURL)
	req.NoError(a.Send(server.EventSendMessage, map[string]string{"content": "first"}))
	waitForEntry(t, a)

	late, err := testhelpers.ConnectWebSocket(wsURL)
	req.NoError(err)
	defer late.Close()

	history := waitForHistory(t, late)
	req.Len(history, 1)
	req.Equal("first", history[0].Content)
}

// TestFileSharingRoundTrip verifies upload, announcement, and a byte-identical
// download.
func TestFileSharingRoundTrip(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t, nil)
	wsURL := testhelpers.BuildWebSocketURL(ts.URL)

	a, aID := testhelpers.MustConnect(t, wsURL)
	b, _ := testhelpers.MustConnect(t, wsURL)
	req.NoError(a.Send(server.EventIdentify, map[string]string{"name": "Phone", "platform": "android"}))
	_, err := a.WaitFor(server.EventUserUpdate, eventTimeout)
	req.NoError(err)

	content := pngContent(2048)
	resp, upload := uploadFile(t, ts.URL, aID, "holiday photo.png", content)
	testhelpers.AssertStatusCode(t, resp, http.StatusCreated)
	req.Equal("holiday_photo.png", upload.Filename)
	req.EqualValues(len(content), upload.Size)
	req.Equal("image/png", upload.MimeType)
	req.Equal(transfer.CategoryImages, upload.Category)

	for _, client := range []*testhelpers.WSClient{a, b} {
		entry := waitForEntry(t, client)
		req.Equal("file", string(entry.Type))
		req.Equal(upload.FileID, entry.FileID)
		req.Equal(upload.EntryID, entry.ID)
		req.Equal("holiday_photo.png", entry.Filename)
		req.Equal("Phone", entry.Sender)
		req.NotNil(entry.Size)
		req.EqualValues(len(content), *entry.Size)
	}

	download := testhelpers.MakeRequest(t, http.MethodGet, ts.URL+"/download/"+upload.FileID)
	testhelpers.AssertStatusCode(t, download, http.StatusOK)
	testhelpers.AssertContentType(t, download, "image/png")
	req.Equal("attachment; filename=holiday_photo.png", download.Header.Get("Content-Disposition"))
	req.Equal(content, testhelpers.ReadBody(t, download))
}

// TestClearHistoryReleasesFiles verifies that clearing notifies every device,
// makes shared files unreachable, and leaves late joiners with empty history.
func TestClearHistoryReleasesFiles(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t, nil)
	wsURL := testhelpers.BuildWebSocketURL(ts.URL)

	a, aID := testhelpers.MustConnect(t, wsURL)
	b, _ := testhelpers.MustConnect(t, wsURL)

	resp, upload := uploadFile(t, ts.URL, aID, "notes.txt", []byte("some notes"))
	testhelpers.AssertStatusCode(t, resp, http.StatusCreated)
	waitForEntry(t, a)
	waitForEntry(t, b)

	req.NoError(b.Send(server.EventClearHistory, nil))
	for _, client := range []*testhelpers.WSClient{a, b} {
		_, err := client.WaitFor(server.EventHistoryCleared, eventTimeout)
		req.NoError(err)
	}

	download := testhelpers.MakeRequest(t, http.MethodGet, ts.URL+"/download/"+upload.FileID)
	testhelpers.AssertStatusCode(t, download, http.StatusNotFound)
	_ = download.Body.Close()

	late, err := testhelpers.ConnectWebSocket(wsURL)
	req.NoError(err)
	defer late.Close()
	req.Empty(waitForHistory(t, late))
}

func TestUploadRejections(t *testing.T) {
	ts := newTestServer(t, nil)
	wsURL := testhelpers.BuildWebSocketURL(ts.URL)
	_, aID := testhelpers.MustConnect(t, wsURL)

	t.Run("Unknown connection", func(t *testing.T) {
		resp, _ := uploadFile(t, ts.URL, "8f14e45f-ceea-467f-a8f4-6d5d6c6c2f1b", "a.txt", []byte("x"))
		testhelpers.AssertStatusCode(t, resp, http.StatusConflict)
	})

	t.Run("Missing connection", func(t *testing.T) {
		resp, _ := uploadFile(t, ts.URL, "", "a.txt", []byte("x"))
		testhelpers.AssertStatusCode(t, resp, http.StatusBadRequest)
	})

	t.Run("Too large", func(t *testing.T) {
		resp, _ := uploadFile(t, ts.URL, aID, "big.bin", make([]byte, 100*transfer.KB))
		testhelpers.AssertStatusCode(t, resp, http.StatusRequestEntityTooLarge)
	})

	t.Run("Not multipart", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/upload", "text/plain", strings.NewReader("hello"))
		require.NoError(t, err)
		testhelpers.ReadBody(t, resp)
		testhelpers.AssertStatusCode(t, resp, http.StatusBadRequest)
	})

	t.Run("No file part", func(t *testing.T) {
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		require.NoError(t, writer.WriteField("connection_id", aID))
		require.NoError(t, writer.Close())

		resp, err := http.Post(ts.URL+"/upload", writer.FormDataContentType(), &body)
		require.NoError(t, err)
		testhelpers.ReadBody(t, resp)
		testhelpers.AssertStatusCode(t, resp, http.StatusBadRequest)
	})

	t.Run("Connection id header", func(t *testing.T) {
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		part, err := writer.CreateFormFile("file", "header.txt")
		require.NoError(t, err)
		_, err = part.Write([]byte("via header"))
		require.NoError(t, err)
		require.NoError(t, writer.Close())

		r, err := http.NewRequest(http.MethodPost, ts.URL+"/upload", &body)
		require.NoError(t, err)
		r.Header.Set("Content-Type", writer.FormDataContentType())
		r.Header.Set("X-Connection-ID", aID)

		resp, err := http.DefaultClient.Do(r)
		require.NoError(t, err)
		testhelpers.ReadBody(t, resp)
		testhelpers.AssertStatusCode(t, resp, http.StatusCreated)
	})
}

func TestDownloadUnknownBlob(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t, nil)

	for _, id := range []string{"nope", "8f14e45f-ceea-467f-a8f4-6d5d6c6c2f1b"} {
		resp := testhelpers.MakeRequest(t, http.MethodGet, ts.URL+"/download/"+id)
		testhelpers.AssertStatusCode(t, resp, http.StatusNotFound)
		testhelpers.AssertContentType(t, resp, "application/json")

		var body map[string]string
		req.NoError(json.Unmarshal(testhelpers.ReadBody(t, resp), &body))
		req.NotEmpty(body["error"])
	}
}

// TestMalformedEventKeepsConnection verifies that a bad frame is answered with
// an error event and the connection stays usable.
func TestMalformedEventKeepsConnection(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t, nil)

	a, _ := testhelpers.MustConnect(t, testhelpers.BuildWebSocketURL(ts.URL))

	req.NoError(a.SendRaw([]byte("not json")))
	ev, err := a.WaitFor(server.EventError, eventTimeout)
	req.NoError(err)
	var payload server.ErrorPayload
	req.NoError(ev.Decode(&payload))
	req.Contains(payload.Message, "malformed event")

	req.NoError(a.Send(server.EventSendMessage, map[string]string{"content": "still here"}))
	req.Equal("still here", waitForEntry(t, a).Content)
}

func TestRateLimitedEventsAreRejected(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t, func(cfg *server.Config) {
		cfg.RateLimitBurst = 2
		cfg.RateLimitRefillInterval = time.Hour
	})

	a, _ := testhelpers.MustConnect(t, testhelpers.BuildWebSocketURL(ts.URL))
	for range 3 {
		req.NoError(a.Send(server.EventSendMessage, map[string]string{"content": "spam"}))
	}

	ev, err := a.WaitFor(server.EventError, eventTimeout)
	req.NoError(err)
	var payload server.ErrorPayload
	req.NoError(ev.Decode(&payload))
	req.Contains(payload.Message, "Rate limit")
}

func TestDisconnectUpdatesRoster(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t, nil)
	wsURL := testhelpers.BuildWebSocketURL(ts.URL)

	a, _ := testhelpers.MustConnect(t, wsURL)
	b, err := testhelpers.ConnectWebSocket(wsURL)
	req.NoError(err)
	_, err = b.WaitFor(server.EventWelcome, eventTimeout)
	req.NoError(err)
	req.NoError(b.Close())

	deadline := time.Now().Add(eventTimeout)
	for time.Now().Before(deadline) {
		ev, err := a.WaitFor(server.EventUserUpdate, time.Until(deadline))
		req.NoError(err)
		var roster server.UserUpdatePayload
		req.NoError(ev.Decode(&roster))
		if roster.Count == 1 && len(roster.Devices) == 1 {
			return
		}
	}
	t.Fatal("roster never shrank back to one device")
}

func TestOriginEnforcement(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t, func(cfg *server.Config) {
		cfg.AllowedOrigins = "http://allowed.example"
	})
	wsURL := testhelpers.BuildWebSocketURL(ts.URL)

	_, err := testhelpers.ConnectWebSocket(wsURL)
	req.Error(err)

	_, err = testhelpers.ConnectWebSocketWithOrigin(wsURL, "")
	req.Error(err)

	client, err := testhelpers.ConnectWebSocketWithOrigin(wsURL, "http://allowed.example")
	req.NoError(err)
	_ = client.Close()
}

func TestHealthEndpoints(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t, nil)
	testhelpers.MustConnect(t, testhelpers.BuildWebSocketURL(ts.URL))

	resp := testhelpers.MakeRequest(t, http.MethodGet, ts.URL+"/health")
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	testhelpers.AssertContentType(t, resp, "application/json")

	var health server.HealthResponse
	req.NoError(json.Unmarshal(testhelpers.ReadBody(t, resp), &health))
	req.Equal("ok", health.Status)
	req.Equal(1, health.Connections)
	req.Zero(health.History)

	root := testhelpers.MakeRequest(t, http.MethodGet, ts.URL+"/")
	testhelpers.AssertStatusCode(t, root, http.StatusOK)
	req.Equal("LanShare server is running!", string(testhelpers.ReadBody(t, root)))

	page := testhelpers.MakeRequest(t, http.MethodGet, ts.URL+"/test")
	testhelpers.AssertStatusCode(t, page, http.StatusOK)
	req.Contains(string(testhelpers.ReadBody(t, page)), "LanShare Test Console")
}

func TestWebSocketRejectsOtherMethods(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := testhelpers.MakeRequest(t, http.MethodPost, ts.URL+"/ws")
	defer resp.Body.Close()
	testhelpers.AssertStatusCode(t, resp, http.StatusMethodNotAllowed)
}
