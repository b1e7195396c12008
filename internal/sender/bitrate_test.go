package sender

import "testing"

func TestGateNoReceiversNotReady(t *testing.T) {
	d := Gate(nil, 0, 1.0)
	if d.IsReady {
		t.Errorf("IsReady = true with no receivers, want false")
	}
}

func TestGateNewJoinerForcesKeyframe(t *testing.T) {
	receivers := []ReceiverEntry{{ReceiverID: 1, HasReportedFrame: false}}
	d := Gate(receivers, 10, 0.001)
	if !d.IsReady || !d.Keyframe {
		t.Errorf("got %+v, want ready+keyframe for new joiner", d)
	}
}

func TestGateCaughtUpReceiverIsReadyQuickly(t *testing.T) {
	receivers := []ReceiverEntry{{ReceiverID: 1, HasReportedFrame: true, LastReportedFrameID: 10}}
	// deltaID = lastFrameID(10) - minReported(10) = 0, so 2^(0-1) = 0.5;
	// any delta above 1/60s clears it at 30fps.
	d := Gate(receivers, 10, 1.0/30)
	if !d.IsReady {
		t.Errorf("IsReady = false for caught-up receiver, want true")
	}
	if d.Keyframe {
		t.Errorf("Keyframe = true for caught-up receiver, want false")
	}
}

func TestGateFarBehindReceiverBacksOffAndRequestsKeyframe(t *testing.T) {
	receivers := []ReceiverEntry{{ReceiverID: 1, HasReportedFrame: true, LastReportedFrameID: 0}}
	d := Gate(receivers, 10, 0.001) // deltaID = 10, way behind
	if d.IsReady {
		t.Errorf("IsReady = true for far-behind receiver at tiny delta, want false")
	}
	if !d.Keyframe {
		t.Errorf("Keyframe = false with deltaID=10 (>5), want true")
	}
}

func TestGateUsesSlowestReceiver(t *testing.T) {
	receivers := []ReceiverEntry{
		{ReceiverID: 1, HasReportedFrame: true, LastReportedFrameID: 10},
		{ReceiverID: 2, HasReportedFrame: true, LastReportedFrameID: 3},
	}
	d := Gate(receivers, 10, 1.0/30)
	// deltaID against the slowest receiver (3) is 7, which forces a keyframe.
	if !d.Keyframe {
		t.Errorf("Keyframe = false, want true (gated by slowest receiver)")
	}
}
