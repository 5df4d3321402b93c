package handlers

import (
	"io"
	"net/http"

	"bitbucket.org/mmdatafocus/recon_backend/models"
	"github.com/gin-gonic/gin"
)

// 10 MB is plenty for a bank statement; anything larger is a mistake.
const maxStatementBytes = 10 << 20

func ImportStatementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.Authorize(ctx, models.ActionStatementImport, models.PolicyLevelEdit); err != nil {
			respondError(c, err)
			return
		}
		accountId, err := pathId(c, "accountId")
		if err != nil {
			respondError(c, err)
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			respondError(c, models.ErrValidation("multipart field 'file' is required"))
			return
		}
		if fileHeader.Size > maxStatementBytes {
			respondError(c, models.ErrValidation("statement file exceeds 10 MB"))
			return
		}
		f, err := fileHeader.Open()
		if err != nil {
			respondError(c, err)
			return
		}
		defer f.Close()
		content, err := io.ReadAll(io.LimitReader(f, maxStatementBytes+1))
		if err != nil {
			respondError(c, err)
			return
		}

		result, err := models.ImportBankStatement(ctx, &models.StatementImportInput{
			AccountId: accountId,
			FileName:  fileHeader.Filename,
			Content:   content,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"statement_import": result})
	}
}

func ListStatementImportsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.Authorize(ctx, models.ActionReconcileView, models.PolicyLevelView); err != nil {
			respondError(c, err)
			return
		}
		accountId, err := pathId(c, "accountId")
		if err != nil {
			respondError(c, err)
			return
		}
		imports, err := models.GetStatementImports(ctx, accountId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"statement_imports": imports})
	}
}
