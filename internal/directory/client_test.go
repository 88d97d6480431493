package directory_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomlink/roomlink/internal/directory"
	"github.com/roomlink/roomlink/internal/directory/directorytest"
)

func TestCreate_StampsRequestFields(t *testing.T) {
	srv := directorytest.NewServer()
	defer srv.Close()
	srv.RespondWith([]byte(`{"result":{"id":"abc","server":{"server":"h","port":1},"application_name":"evil","version":"9","password":"leak"}}`))

	client := directory.New(srv.URL)
	room, err := client.Create(context.Background(), directory.CreateRequest{
		ApplicationName: "pong",
		Version:         "1.0",
		Password:        "x",
	})
	require.NoError(t, err)

	data, err := json.Marshal(room)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"abc","server":{"server":"h","port":1},"application_name":"pong","version":"1.0","password":"x"}`, string(data))
	assert.Equal(t, "abc", room.ID())
	assert.Equal(t, "h", room.Server.Host)
	assert.Equal(t, 1, room.Server.Port)
}

func TestCreate_Scenario(t *testing.T) {
	srv := directorytest.NewServer()
	defer srv.Close()
	srv.RespondWith([]byte(`{"result":{"id":"abc","server":{"server":"h","port":1}}}`))

	client := directory.New(srv.URL + "/")
	got := make(chan *directory.Room, 1)
	errc := client.CreateAsync(context.Background(), directory.CreateRequest{
		ApplicationName: "pong",
		Version:         "1.0",
		Password:        "x",
	}, func(room *directory.Room) {
		got <- room
	})

	require.NoError(t, <-errc)
	room := <-got
	data, err := json.Marshal(room)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"abc","server":{"server":"h","port":1},"application_name":"pong","version":"1.0","password":"x"}`, string(data))
}

func TestCreate_SendsJSONBody(t *testing.T) {
	srv := directorytest.NewServer()
	defer srv.Close()

	client := directory.New(srv.URL)
	room, err := client.Create(context.Background(), directory.CreateRequest{
		ApplicationName: "pong",
		Version:         "1.0",
		MaxUser:         4,
		Information:     map[string]string{"map": "arena"},
		Extra:           map[string]any{"region": "eu"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, room.ID())
	assert.Equal(t, srv.Host, room.Server.Host)
	assert.Equal(t, srv.Port, room.Server.Port)

	var region string
	ok, err := room.Field("region", &region)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "eu", region)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "/rooms", reqs[0].Path)
	assert.Equal(t, "application/json", reqs[0].ContentType)
	assert.Equal(t, "pong", reqs[0].Body["application_name"])
	assert.Equal(t, "1.0", reqs[0].Body["version"])
	assert.Equal(t, float64(4), reqs[0].Body["max_user"])
	assert.Equal(t, "eu", reqs[0].Body["region"])
	assert.NotContains(t, reqs[0].Body, "password")
}

func TestCreate_NonCreatedStatus(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusBadRequest, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			srv := directorytest.NewServer()
			defer srv.Close()
			srv.FailCreate(status)

			client := directory.New(srv.URL)
			called := make(chan struct{}, 1)
			errc := client.CreateAsync(context.Background(), directory.CreateRequest{ApplicationName: "pong"}, func(*directory.Room) {
				called <- struct{}{}
			})

			err := <-errc
			require.ErrorIs(t, err, directory.ErrUnexpectedStatus)

			var derr *directory.Error
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, status, derr.StatusCode)
			assert.Equal(t, "create room", derr.Op)

			select {
			case <-called:
				t.Fatal("callback invoked on failure")
			case <-time.After(50 * time.Millisecond):
			}
		})
	}
}

func TestCreate_MalformedBody(t *testing.T) {
	srv := directorytest.NewServer()
	defer srv.Close()
	srv.RespondWith([]byte(`{"result":`))

	client := directory.New(srv.URL)
	_, err := client.Create(context.Background(), directory.CreateRequest{ApplicationName: "pong"})
	assert.ErrorIs(t, err, directory.ErrMalformedResponse)
}

func TestCreate_Unreachable(t *testing.T) {
	srv := directorytest.NewServer()
	url := srv.URL
	srv.Close()

	client := directory.New(url, directory.WithTimeout(time.Second))
	_, err := client.Create(context.Background(), directory.CreateRequest{ApplicationName: "pong"})
	require.Error(t, err)

	var derr *directory.Error
	require.ErrorAs(t, err, &derr)
	assert.Zero(t, derr.StatusCode)
}

func TestSearch_StampsNameAndVersionOnly(t *testing.T) {
	srv := directorytest.NewServer()
	defer srv.Close()
	srv.RespondWith([]byte(`{"result":[
		{"id":"a","server":{"server":"h1","port":1},"application_name":"x","version":"0","password":"p1"},
		{"id":"b","server":{"server":"h2","port":2}}
	]}`))

	client := directory.New(srv.URL)
	rooms, err := client.Search(context.Background(), directory.SearchRequest{ApplicationName: "pong", Version: "1.0"})
	require.NoError(t, err)
	require.Len(t, rooms, 2)

	for _, room := range rooms {
		assert.Equal(t, "pong", room.ApplicationName)
		assert.Equal(t, "1.0", room.Version)
	}
	assert.Equal(t, "p1", rooms[0].Password)
	assert.Empty(t, rooms[1].Password)

	data, err := json.Marshal(rooms[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"b","server":{"server":"h2","port":2},"application_name":"pong","version":"1.0"}`, string(data))
}

func TestCreate_StampedFieldsOfOtherType(t *testing.T) {
	srv := directorytest.NewServer()
	defer srv.Close()
	srv.RespondWith([]byte(`{"result":{"id":"abc","server":{"server":"h","port":1},"version":2,"password":null}}`))

	client := directory.New(srv.URL)
	room, err := client.Create(context.Background(), directory.CreateRequest{
		ApplicationName: "pong",
		Version:         "1.0",
		Password:        "x",
	})
	require.NoError(t, err)

	data, err := json.Marshal(room)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"abc","server":{"server":"h","port":1},"application_name":"pong","version":"1.0","password":"x"}`, string(data))
}

func TestSearch_PasswordPassesThrough(t *testing.T) {
	srv := directorytest.NewServer()
	defer srv.Close()
	srv.RespondWith([]byte(`{"result":[
		{"id":"a","password":""},
		{"id":"b","password":null},
		{"id":"c","password":1234,"application_name":false}
	]}`))

	client := directory.New(srv.URL)
	rooms, err := client.Search(context.Background(), directory.SearchRequest{ApplicationName: "pong", Version: "1.0"})
	require.NoError(t, err)
	require.Len(t, rooms, 3)

	want := []string{
		`{"id":"a","application_name":"pong","version":"1.0","password":""}`,
		`{"id":"b","application_name":"pong","version":"1.0","password":null}`,
		`{"id":"c","application_name":"pong","version":"1.0","password":1234}`,
	}
	for i, room := range rooms {
		data, err := json.Marshal(room)
		require.NoError(t, err)
		assert.JSONEq(t, want[i], string(data))
	}
}

func TestSearch_QueryEncoding(t *testing.T) {
	srv := directorytest.NewServer()
	defer srv.Close()

	name := "space & rock/roll?=#"
	version := "1.0+beta 2"
	srv.AddRoom(map[string]any{"id": "r1", "application_name": name, "version": version})
	srv.AddRoom(map[string]any{"id": "r2", "application_name": name, "version": "other"})

	client := directory.New(srv.URL)
	got := make(chan []*directory.Room, 1)
	errc := client.SearchAsync(context.Background(), directory.SearchRequest{ApplicationName: name, Version: version}, func(rooms []*directory.Room) {
		got <- rooms
	})
	require.NoError(t, <-errc)

	rooms := <-got
	require.Len(t, rooms, 1)
	assert.Equal(t, "r1", rooms[0].ID())

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodGet, reqs[0].Method)
	assert.Equal(t, name, reqs[0].Query.Get("name"))
	assert.Equal(t, version, reqs[0].Query.Get("version"))
	assert.NotContains(t, reqs[0].Query, "application_name")
}

func TestSearch_EmptyResult(t *testing.T) {
	srv := directorytest.NewServer()
	defer srv.Close()
	srv.RespondWith([]byte(`{"result":null}`))

	client := directory.New(srv.URL)
	rooms, err := client.Search(context.Background(), directory.SearchRequest{ApplicationName: "pong", Version: "1.0"})
	require.NoError(t, err)
	assert.NotNil(t, rooms)
	assert.Empty(t, rooms)
}

func TestSearch_NonOKStatus(t *testing.T) {
	srv := directorytest.NewServer()
	defer srv.Close()
	srv.FailSearch(http.StatusCreated)

	client := directory.New(srv.URL)
	called := make(chan struct{}, 1)
	errc := client.SearchAsync(context.Background(), directory.SearchRequest{ApplicationName: "pong"}, func([]*directory.Room) {
		called <- struct{}{}
	})

	assert.ErrorIs(t, <-errc, directory.ErrUnexpectedStatus)
	select {
	case <-called:
		t.Fatal("callback invoked on failure")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSearch_ContextCancelled(t *testing.T) {
	srv := directorytest.NewServer()
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := directory.New(srv.URL)
	_, err := client.Search(ctx, directory.SearchRequest{ApplicationName: "pong"})
	assert.ErrorIs(t, err, context.Canceled)
}
