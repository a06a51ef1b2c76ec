package model

// DocumentType is a classified trade-finance document type.
type DocumentType string

const (
	DocTypeCommercialInvoice    DocumentType = "Commercial Invoice"
	DocTypeLetterOfCredit       DocumentType = "Letter of Credit"
	DocTypeBillOfLading         DocumentType = "Bill of Lading"
	DocTypeCertificateOfOrigin  DocumentType = "Certificate of Origin"
	DocTypePackingList          DocumentType = "Packing List"
	DocTypeInsuranceCertificate DocumentType = "Insurance Certificate"
	DocTypeMultimodalTransport  DocumentType = "Multimodal Transport Document"

	// DocTypeGeneric is assigned when no taxonomy pattern matches.
	DocTypeGeneric DocumentType = "Trade Document"
)

// KnownDocumentTypes lists the classifiable taxonomy, excluding the
// generic fallback.
var KnownDocumentTypes = []DocumentType{
	DocTypeCommercialInvoice,
	DocTypeLetterOfCredit,
	DocTypeBillOfLading,
	DocTypeCertificateOfOrigin,
	DocTypePackingList,
	DocTypeInsuranceCertificate,
	DocTypeMultimodalTransport,
}
