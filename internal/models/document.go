package models

// Document kinds, one per required upload
const (
	DocClientID       = "credencial_cliente"
	DocGuarantorID    = "credencial_aval"
	DocProofOfAddress = "comprobante_domicilio"
)

// DocumentKinds lists the documents every client must provide, in form order
var DocumentKinds = []string{DocClientID, DocGuarantorID, DocProofOfAddress}

// Document represents metadata of an uploaded identity document
type Document struct {
	ID           int64  `json:"id" db:"id"`
	ClientID     int64  `json:"id_cliente" db:"id_cliente"`
	Kind         string `json:"tipo" db:"tipo"`
	Key          string `json:"clave" db:"clave"`
	OriginalName string `json:"nombre_original" db:"nombre_original"`
	ContentType  string `json:"content_type" db:"content_type"`
	Size         int64  `json:"tamano" db:"tamano"`
}
