package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yprint/payment"
)

func newTestLifecycle(sdk payment.SDK) *ElementLifecycle {
	l := NewElementLifecycle(NewSession(), sdk)
	l.retryDelay = time.Millisecond
	return l
}

func TestEnsureReadyMountsOnce(t *testing.T) {
	sdk := payment.NewMemorySDK()
	l := newTestLifecycle(sdk)

	require.NoError(t, l.EnsureReady(context.Background(), MethodCard))
	first := l.Element(payment.ElementCard)
	require.NotNil(t, first)

	h, ok := l.Handle(MethodCard)
	require.True(t, ok)
	assert.Equal(t, ElementMounted, h.State())

	// repeated calls neither recreate nor remount
	require.NoError(t, l.EnsureReady(context.Background(), MethodCard))
	assert.Same(t, first, l.Element(payment.ElementCard))
}

func TestEnsureReadyExhaustsAttempts(t *testing.T) {
	sdk := payment.NewMemorySDK()
	sdk.NeverReady()
	l := newTestLifecycle(sdk)

	err := l.EnsureReady(context.Background(), MethodCard)
	require.Error(t, err)

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, FailureSDKUnavailable, failure.Kind)
	assert.Equal(t, msgReloadPage, failure.Message)
	assert.Equal(t, 5, sdk.InitCalls())

	h, ok := l.Handle(MethodCard)
	require.True(t, ok)
	assert.Equal(t, ElementFailed, h.State())

	// the failed handle is terminal: no further attempts are made
	err = l.EnsureReady(context.Background(), MethodCard)
	require.Error(t, err)
	assert.Equal(t, 5, sdk.InitCalls())
}

func TestEnsureReadyRecoversWithinAttempts(t *testing.T) {
	sdk := payment.NewMemorySDK()
	sdk.ReadyAfter(3)
	l := newTestLifecycle(sdk)

	require.NoError(t, l.EnsureReady(context.Background(), MethodCard))
	assert.Equal(t, 4, sdk.InitCalls())

	h, _ := l.Handle(MethodCard)
	assert.Equal(t, ElementMounted, h.State())
}

func TestEnsureReadyElementsFactoryFailure(t *testing.T) {
	sdk := payment.NewMemorySDK()
	sdk.FailElements(errors.New("elements unavailable"))
	l := newTestLifecycle(sdk)

	err := l.EnsureReady(context.Background(), MethodCard)
	require.Error(t, err)

	h, _ := l.Handle(MethodCard)
	assert.Equal(t, ElementFailed, h.State())
}

func TestEnsureReadyExpressMethods(t *testing.T) {
	sdk := payment.NewMemorySDK()
	l := newTestLifecycle(sdk)

	require.NoError(t, l.EnsureReady(context.Background(), MethodExpressApplePay))
	require.NoError(t, l.EnsureReady(context.Background(), MethodExpressGooglePay))

	assert.Zero(t, sdk.InitCalls(), "express methods never touch the SDK")
	_, ok := l.Handle(MethodExpressApplePay)
	assert.False(t, ok)
}

func TestChangeEventsDriveFillState(t *testing.T) {
	l := newTestLifecycle(payment.NewMemorySDK())
	require.NoError(t, l.EnsureReady(context.Background(), MethodCard))
	h, _ := l.Handle(MethodCard)

	require.NoError(t, l.UpdateInput(MethodCard, payment.Input{CardNumber: "4242"}))
	assert.Equal(t, ElementMountedInvalid, h.State())
	hasChange, complete, validationError := h.InputState()
	assert.True(t, hasChange)
	assert.False(t, complete)
	assert.NotEmpty(t, validationError)

	require.NoError(t, l.UpdateInput(MethodCard, payment.Input{
		CardNumber: "4242424242424242", ExpMonth: "12", ExpYear: "2032", CVC: "123",
	}))
	assert.Equal(t, ElementMountedComplete, h.State())
	_, complete, validationError = h.InputState()
	assert.True(t, complete)
	assert.Empty(t, validationError)

	require.NoError(t, l.UpdateInput(MethodCard, payment.Input{}))
	assert.Equal(t, ElementMounted, h.State(), "cleared input is incomplete but shows no error")
}

func TestClearDisplayedErrorKeepsInput(t *testing.T) {
	l := newTestLifecycle(payment.NewMemorySDK())
	require.NoError(t, l.EnsureReady(context.Background(), MethodCard))
	require.NoError(t, l.UpdateInput(MethodCard, payment.Input{CardNumber: "4242"}))

	l.ClearDisplayedError(MethodCard)

	h, _ := l.Handle(MethodCard)
	assert.Equal(t, ElementMounted, h.State())
	hasChange, _, validationError := h.InputState()
	assert.True(t, hasChange, "the buffered input survives the error reset")
	assert.Empty(t, validationError)

	hosted, ok := l.Element(payment.ElementCard).(*payment.HostedElement)
	require.True(t, ok)
	in, _, _ := hosted.Snapshot()
	assert.Equal(t, "4242", in.CardNumber)
}

func TestUpdateInputBeforeMount(t *testing.T) {
	l := newTestLifecycle(payment.NewMemorySDK())

	err := l.UpdateInput(MethodCard, payment.Input{CardNumber: "4242"})
	assert.Error(t, err)

	err = l.UpdateInput(MethodExpressApplePay, payment.Input{})
	assert.Error(t, err)
}

func TestDestroyAllReleasesElements(t *testing.T) {
	l := newTestLifecycle(payment.NewMemorySDK())
	require.NoError(t, l.EnsureReady(context.Background(), MethodCard))
	require.NoError(t, l.EnsureReady(context.Background(), MethodSEPADebit))

	l.DestroyAll()

	assert.Nil(t, l.Element(payment.ElementCard))
	assert.Nil(t, l.Element(payment.ElementSEPA))
	h, _ := l.Handle(MethodCard)
	assert.Equal(t, ElementUninitialized, h.State())
}
