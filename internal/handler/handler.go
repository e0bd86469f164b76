package handler

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/Dan9191/loan-control/internal/config"
	"github.com/Dan9191/loan-control/internal/middleware"
	"github.com/Dan9191/loan-control/internal/models"
	"github.com/Dan9191/loan-control/internal/service"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Service is the business logic the handlers depend on
type Service interface {
	Ping(ctx context.Context) error
	Register(ctx context.Context, username, password, email string) (*models.User, error)
	Login(ctx context.Context, username, password string) (string, error)
	Dashboard(ctx context.Context, userID string) (*models.Dashboard, error)
	RegisterClient(ctx context.Context, userID string, input service.ClientInput, uploads []service.Upload) (*models.Client, error)
	Client(ctx context.Context, userID string, clientID int64) (*models.Client, error)
	Documents(ctx context.Context, userID string, clientID int64) ([]models.Document, error)
	Document(ctx context.Context, userID string, documentID int64) (*models.Document, io.ReadSeekCloser, error)
	SelectPlan(ctx context.Context, userID string, clientID int64, term, dueDay int) (*models.PaymentPlan, error)
	RecordPayment(ctx context.Context, userID string, clientID int64, rawAmount string) (*models.PaymentResult, error)
	Payments(ctx context.Context, userID string, clientID int64) ([]models.Payment, error)
}

type Handler struct {
	svc       Service
	cfg       *config.Config
	log       *logrus.Logger
	templates map[string]*template.Template
}

func NewHandler(svc Service, cfg *config.Config, log *logrus.Logger) (*Handler, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &Handler{svc: svc, cfg: cfg, log: log, templates: templates}, nil
}

// Routes registers every endpoint on a new router
func (h *Handler) Routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(h.log))

	// Public routes
	r.HandleFunc("/", h.Home).Methods(http.MethodGet)
	r.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/registro", h.RegisterPage).Methods(http.MethodGet)
	r.HandleFunc("/registro", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/logout", h.Logout).Methods(http.MethodPost)
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	// Protected routes
	auth := r.PathPrefix("/").Subrouter()
	auth.Use(middleware.AuthMiddleware(h.cfg))
	auth.HandleFunc("/dashboard", h.Dashboard).Methods(http.MethodGet)
	auth.HandleFunc("/nuevo_cliente", h.NewClientPage).Methods(http.MethodGet)
	auth.HandleFunc("/nuevo_cliente", h.NewClient).Methods(http.MethodPost)
	auth.HandleFunc("/metodos_pago/{id:[0-9]+}/{prestamo}", h.PaymentPlanPage).Methods(http.MethodGet)
	auth.HandleFunc("/metodos_pago/{id:[0-9]+}/{prestamo}", h.SelectPlan).Methods(http.MethodPost)
	auth.HandleFunc("/registro_pago", h.RecordPayment).Methods(http.MethodPost)
	auth.HandleFunc("/documentos/{id:[0-9]+}", h.Document).Methods(http.MethodGet)
	return r
}

func userID(r *http.Request) (string, bool) {
	return middleware.UserIDFromContext(r.Context())
}

// Home renders the login page
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "login.html", "Iniciar sesión", nil)
}

// Login handles user authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	token, err := h.svc.Login(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.fail(w, r, "Credenciales inválidas", "/")
			return
		}
		h.log.Errorf("Login failed: %v", err)
		h.fail(w, r, "Error de conexión o autenticación", "/")
		return
	}
	middleware.SetSession(w, token, h.cfg.SessionTTL, r.TLS != nil)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Logout clears the session
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	middleware.ClearSession(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// RegisterPage renders the user registration form
func (h *Handler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "registro.html", "Registro", nil)
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	_, err := h.svc.Register(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"), r.PostFormValue("email"))
	switch {
	case err == nil:
		h.succeed(w, r, "Usuario registrado con éxito", "/")
	case errors.Is(err, service.ErrUsernameTaken):
		h.fail(w, r, "El nombre de usuario ya está en uso", "/registro")
	case errors.Is(err, service.ErrWeakPassword):
		h.fail(w, r, "La contraseña debe tener al menos 6 caracteres", "/registro")
	case errors.Is(err, service.ErrInvalidInput):
		h.fail(w, r, "Usuario, contraseña o correo inválidos", "/registro")
	default:
		h.log.Errorf("Register failed: %v", err)
		h.fail(w, r, "Ocurrió un error al registrar el usuario", "/registro")
	}
}

// Dashboard lists the clients with debt
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user, _ := userID(r)
	dash, err := h.svc.Dashboard(r.Context(), user)
	if err != nil {
		h.log.Errorf("Failed to load dashboard for %s: %v", user, err)
		dash = &models.Dashboard{Username: user}
	}
	h.render(w, r, "dashboard.html", "Inicio", dash)
}

// NewClientPage renders the client registration form
func (h *Handler) NewClientPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "nuevo_cliente.html", "Nuevo cliente", nil)
}

// NewClient registers a client together with its documents
func (h *Handler) NewClient(w http.ResponseWriter, r *http.Request) {
	user, _ := userID(r)
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes())
	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes()); err != nil {
		h.fail(w, r, "El formulario es inválido o los archivos son demasiado grandes", "/nuevo_cliente")
		return
	}
	defer r.MultipartForm.RemoveAll()

	uploads, closeAll, err := formUploads(r.MultipartForm)
	defer closeAll()
	if err != nil {
		h.log.Errorf("Failed to open uploads: %v", err)
		h.fail(w, r, "No se pudieron leer los archivos", "/nuevo_cliente")
		return
	}

	input := service.ClientInput{
		FirstName:      r.PostFormValue("nombre"),
		LastName:       r.PostFormValue("apellido"),
		Address:        r.PostFormValue("direccion"),
		Phone:          r.PostFormValue("telefono"),
		Guarantor:      r.PostFormValue("aval"),
		GuarantorPhone: r.PostFormValue("telefono_aval"),
		Principal:      r.PostFormValue("prestamo"),
	}
	client, err := h.svc.RegisterClient(r.Context(), user, input, uploads)
	switch {
	case err == nil:
		h.succeed(w, r, "Cliente registrado con éxito", planURL(client.ID, client.Principal))
	case errors.Is(err, service.ErrNotImageDocument):
		h.fail(w, r, "Solo se permiten archivos de tipo imagen", "/nuevo_cliente")
	case errors.Is(err, service.ErrMissingDocument):
		h.fail(w, r, "Debe adjuntar los tres documentos", "/nuevo_cliente")
	case errors.Is(err, service.ErrInvalidAmount):
		h.fail(w, r, "El monto del préstamo debe ser un número válido.", "/nuevo_cliente")
	case errors.Is(err, service.ErrInvalidInput):
		h.fail(w, r, "Todos los campos son obligatorios", "/nuevo_cliente")
	default:
		h.log.Errorf("Failed to register client for %s: %v", user, err)
		h.fail(w, r, "Error al registrar el cliente", "/nuevo_cliente")
	}
}

func formUploads(form *multipart.Form) ([]service.Upload, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}
	uploads := make([]service.Upload, 0, len(models.DocumentKinds))
	for _, kind := range models.DocumentKinds {
		headers := form.File[kind]
		if len(headers) == 0 {
			continue
		}
		fh := headers[0]
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, err
		}
		opened = append(opened, f)
		uploads = append(uploads, service.Upload{
			Kind:        kind,
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Body:        f,
		})
	}
	return uploads, closeAll, nil
}

func planURL(clientID int64, principal decimal.Decimal) string {
	return fmt.Sprintf("/metodos_pago/%d/%s", clientID, principal.StringFixed(2))
}

type planOption struct {
	Term  int
	Rate  decimal.Decimal
	Total decimal.Decimal
}

type planPage struct {
	Client    *models.Client
	Options   []planOption
	Locked    bool
	Payments  []models.Payment
	Documents []models.Document
}

// PaymentPlanPage shows the available terms and the payment history of a
// client
func (h *Handler) PaymentPlanPage(w http.ResponseWriter, r *http.Request) {
	user, _ := userID(r)
	clientID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.fail(w, r, "Cliente no encontrado", "/dashboard")
		return
	}
	client, err := h.svc.Client(r.Context(), user, clientID)
	if err != nil {
		if !errors.Is(err, service.ErrClientNotFound) {
			h.log.Errorf("Failed to load client %d: %v", clientID, err)
		}
		h.fail(w, r, "Cliente no encontrado", "/dashboard")
		return
	}
	payments, err := h.svc.Payments(r.Context(), user, clientID)
	if err != nil {
		h.log.Errorf("Failed to load payments of client %d: %v", clientID, err)
	}
	docs, err := h.svc.Documents(r.Context(), user, clientID)
	if err != nil {
		h.log.Errorf("Failed to load documents of client %d: %v", clientID, err)
	}

	page := planPage{Client: client, Locked: len(payments) > 0, Payments: payments, Documents: docs}
	for _, term := range service.Terms() {
		rate, _ := service.InterestRate(term)
		total, _ := service.AdjustedBalance(client.Principal, term)
		page.Options = append(page.Options, planOption{Term: term, Rate: rate, Total: total})
	}
	h.render(w, r, "metodos_pago.html", "Método de pago", page)
}

// SelectPlan applies the chosen term to the client's balance
func (h *Handler) SelectPlan(w http.ResponseWriter, r *http.Request) {
	user, _ := userID(r)
	vars := mux.Vars(r)
	back := fmt.Sprintf("/metodos_pago/%s/%s", vars["id"], vars["prestamo"])

	clientID, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		h.fail(w, r, "Cliente no encontrado", "/dashboard")
		return
	}
	term, err := strconv.Atoi(r.PostFormValue("meses"))
	if err != nil {
		h.fail(w, r, "Seleccione un plazo de 3, 6, 9 o 12 meses", back)
		return
	}
	dueDay, err := strconv.Atoi(r.PostFormValue("dia_pago"))
	if err != nil {
		h.fail(w, r, "El día de pago debe estar entre 1 y 31", back)
		return
	}

	_, err = h.svc.SelectPlan(r.Context(), user, clientID, term, dueDay)
	switch {
	case err == nil:
		h.succeed(w, r, "Método de pago registrado con éxito", "/dashboard")
	case errors.Is(err, service.ErrInvalidTerm):
		h.fail(w, r, "Seleccione un plazo de 3, 6, 9 o 12 meses", back)
	case errors.Is(err, service.ErrInvalidDueDay):
		h.fail(w, r, "El día de pago debe estar entre 1 y 31", back)
	case errors.Is(err, service.ErrPlanLocked):
		h.fail(w, r, "El plan no puede cambiarse después de registrar pagos", back)
	case errors.Is(err, service.ErrClientNotFound):
		h.fail(w, r, "Cliente no encontrado", "/dashboard")
	default:
		h.log.Errorf("Failed to select plan for client %d: %v", clientID, err)
		h.fail(w, r, "Error al registrar el método de pago", back)
	}
}

// RecordPayment applies a payment to a client's balance
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	user, _ := userID(r)
	clientID, err := strconv.ParseInt(r.PostFormValue("id_cliente"), 10, 64)
	if err != nil {
		h.fail(w, r, "Cliente no encontrado", "/dashboard")
		return
	}

	_, err = h.svc.RecordPayment(r.Context(), user, clientID, r.PostFormValue("monto_pagado"))
	switch {
	case err == nil:
		h.succeed(w, r, "Pago registrado con éxito", "/dashboard")
	case errors.Is(err, service.ErrInvalidAmount):
		h.fail(w, r, "Monto a pagar inválido.", "/dashboard")
	case errors.Is(err, service.ErrExceedsDebt):
		h.fail(w, r, "El monto a abonar no puede ser mayor a la deuda.", "/dashboard")
	case errors.Is(err, service.ErrBelowMinimum):
		h.fail(w, r, "El monto a abonar debe ser mayor o igual a 1.", "/dashboard")
	case errors.Is(err, service.ErrClientNotFound):
		h.fail(w, r, "Cliente no encontrado", "/dashboard")
	default:
		h.log.Errorf("Failed to record payment for client %d: %v", clientID, err)
		h.fail(w, r, "Error al registrar el pago", "/dashboard")
	}
}

// Document streams a stored document of one of the user's clients
func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	user, _ := userID(r)
	documentID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	doc, f, err := h.svc.Document(r.Context(), user, documentID)
	if err != nil {
		if !errors.Is(err, service.ErrDocumentNotFound) {
			h.log.Errorf("Failed to open document %d: %v", documentID, err)
		}
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.OriginalName))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, doc.OriginalName, time.Time{}, f)
}

// Health reports whether the database is reachable
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.svc.Ping(ctx); err != nil {
		h.log.Errorf("Health check failed: %v", err)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("ok"))
}
