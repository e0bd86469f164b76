package repository

import (
	"context"
	"fmt"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS usuarios (
		id VARCHAR(64) PRIMARY KEY,
		contraseña TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		creado_en TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS clientes_oficial (
		id SERIAL PRIMARY KEY,
		nombre TEXT NOT NULL,
		apellido TEXT NOT NULL,
		direccion TEXT NOT NULL,
		telefono TEXT NOT NULL,
		aval TEXT NOT NULL,
		telefono_aval TEXT NOT NULL,
		prestamo NUMERIC(14,2) NOT NULL CHECK (prestamo >= 0),
		monto_original NUMERIC(14,2) NOT NULL,
		usuario_id VARCHAR(64) NOT NULL REFERENCES usuarios(id),
		plazo_meses INTEGER,
		dia_pago INTEGER CHECK (dia_pago BETWEEN 1 AND 31),
		credencial_cliente TEXT NOT NULL,
		credencial_aval TEXT NOT NULL,
		comprobante_domicilio TEXT NOT NULL,
		creado_en TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS clientes_oficial_usuario_idx ON clientes_oficial (usuario_id)`,
	`CREATE TABLE IF NOT EXISTS pagos (
		id SERIAL PRIMARY KEY,
		id_cliente INTEGER NOT NULL REFERENCES clientes_oficial(id),
		monto_pagado NUMERIC(14,2) NOT NULL CHECK (monto_pagado > 0),
		pagado_en TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS documentos (
		id SERIAL PRIMARY KEY,
		id_cliente INTEGER NOT NULL REFERENCES clientes_oficial(id),
		tipo TEXT NOT NULL,
		clave TEXT NOT NULL UNIQUE,
		nombre_original TEXT NOT NULL,
		content_type TEXT NOT NULL,
		tamano BIGINT NOT NULL
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS usuarios (
		id TEXT PRIMARY KEY,
		contraseña TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		creado_en DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS clientes_oficial (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		nombre TEXT NOT NULL,
		apellido TEXT NOT NULL,
		direccion TEXT NOT NULL,
		telefono TEXT NOT NULL,
		aval TEXT NOT NULL,
		telefono_aval TEXT NOT NULL,
		prestamo NUMERIC NOT NULL CHECK (prestamo >= 0),
		monto_original NUMERIC NOT NULL,
		usuario_id TEXT NOT NULL REFERENCES usuarios(id),
		plazo_meses INTEGER,
		dia_pago INTEGER CHECK (dia_pago BETWEEN 1 AND 31),
		credencial_cliente TEXT NOT NULL,
		credencial_aval TEXT NOT NULL,
		comprobante_domicilio TEXT NOT NULL,
		creado_en DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS clientes_oficial_usuario_idx ON clientes_oficial (usuario_id)`,
	`CREATE TABLE IF NOT EXISTS pagos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		id_cliente INTEGER NOT NULL REFERENCES clientes_oficial(id),
		monto_pagado NUMERIC NOT NULL CHECK (monto_pagado > 0),
		pagado_en DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS documentos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		id_cliente INTEGER NOT NULL REFERENCES clientes_oficial(id),
		tipo TEXT NOT NULL,
		clave TEXT NOT NULL UNIQUE,
		nombre_original TEXT NOT NULL,
		content_type TEXT NOT NULL,
		tamano INTEGER NOT NULL
	)`,
}

// InitSchema creates the tables if they do not exist yet
func (r *Repository) InitSchema(ctx context.Context) error {
	statements := postgresSchema
	if r.db.DriverName() == "sqlite3" {
		statements = sqliteSchema
	}
	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}
