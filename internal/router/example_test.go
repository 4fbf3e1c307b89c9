package router_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/mapmyfamily/familyapi/internal/db/memorystorage"
	"github.com/mapmyfamily/familyapi/internal/models"
	"github.com/mapmyfamily/familyapi/internal/router"
	"github.com/mapmyfamily/familyapi/internal/service"
)

func setupExampleServer() *httptest.Server {
	db, err := memorystorage.New()
	if err != nil {
		panic(err)
	}

	return httptest.NewServer(router.New(service.New(db)))
}

func ExampleRouter_GetHealth() {
	server := setupExampleServer()
	defer server.Close()

	resp, err := http.Get(server.URL + "/")
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		panic(err)
	}

	fmt.Println("Status Code:", resp.StatusCode)
	fmt.Print("Body: ", string(body))

	// Output:
	// Status Code: 200
	// Body: {"status":"ok"}
}

func ExampleRouter_PostUser() {
	server := setupExampleServer()
	defer server.Close()

	payload := models.CreateUserRequest{
		Name:   "Ada",
		Email:  "ada@example.com",
		UserID: "ada-1815",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}

	resp, err := http.Post(server.URL+"/user/", "application/json", bytes.NewReader(body))
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	var created models.User
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		panic(err)
	}

	fmt.Println("Status Code:", resp.StatusCode)
	fmt.Println("Has ID:", len(created.ID) == 24)
	fmt.Println("User ID:", created.UserID)

	// Output:
	// Status Code: 201
	// Has ID: true
	// User ID: ada-1815
}

func ExampleRouter_GetTreeDiagram() {
	server := setupExampleServer()
	defer server.Close()

	resp, err := http.Get(server.URL + "/tree_diagram/123")
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		panic(err)
	}

	fmt.Println("Status Code:", resp.StatusCode)
	fmt.Print("Body: ", string(body))

	// Output:
	// Status Code: 400
	// Body: {"detail":"Failed to get valid tree diagram: invalid document identifier"}
}
