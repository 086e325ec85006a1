package mocks

//go:generate mockery --name Sink --srcpkg github.com/aevon-lab/rollup/internal/ingestion --output ./ingestion --outpkg ingestionmocks --with-expecter
