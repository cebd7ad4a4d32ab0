package web

import (
	"net/http"

	"github.com/addonbay/portal/internal/web/routepath"
)

func registerRoutes(mux *http.ServeMux, h handlers) {
	if mux == nil {
		return
	}
	mux.HandleFunc(http.MethodPost+" "+routepath.Session, h.handleSessionCreate)
	mux.HandleFunc(http.MethodDelete+" "+routepath.Session, h.handleSessionDelete)

	mux.HandleFunc(http.MethodGet+" "+routepath.Addons, h.handleAddonList)
	mux.HandleFunc(http.MethodGet+" "+routepath.AddonDetail, h.handleAddonDetail)
	mux.HandleFunc(http.MethodGet+" "+routepath.AddonZip, h.handleAddonZip)
	mux.HandleFunc(http.MethodGet+" "+routepath.Tags, h.handleTagList)

	mux.HandleFunc(http.MethodPost+" "+routepath.ManageBasicInfo, h.handleBasicInfo)
	mux.HandleFunc(http.MethodPost+" "+routepath.ManageImport, h.handleImport)
	mux.HandleFunc(http.MethodPost+" "+routepath.ManageVersion, h.handleVersion)
	mux.HandleFunc(http.MethodPost+" "+routepath.ManageVersionImport, h.handleVersionImport)
	mux.HandleFunc(http.MethodPost+" "+routepath.ManageFinish, h.handleFinish)
	mux.HandleFunc(http.MethodPost+" "+routepath.ManageAbandon, h.handleAbandon)
	mux.HandleFunc(http.MethodPost+" "+routepath.ManageEdit, h.handleEdit)
}
